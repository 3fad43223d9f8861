package writer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	appconfig "alphaflow/config"
	"alphaflow/internal/floattext"
	"alphaflow/models"
)

func record(key string, first float32) *models.OutputRecord {
	rec := &models.OutputRecord{Key: []byte(key)}
	rec.Means[0] = first
	rec.Value = floattext.AppendVector(nil, rec.Means[:])
	return rec
}

func TestCSVDayWriterRoutesByDay(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVDayWriter(dir, "mmdd")

	require.NoError(t, w.Write(record("20240102_093000", 1.5)))
	require.NoError(t, w.Write(record("20240102_093001", 2)))
	require.NoError(t, w.Write(record("20240103_140000", -1)))
	require.NoError(t, w.Write(record("nounderscore", 7)))

	paths, err := w.Close()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "0102.csv"), filepath.Join(dir, "0103.csv")}, paths)

	data, err := os.ReadFile(filepath.Join(dir, "0102.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "tradeTime,alpha_1,alpha_2,"))
	assert.True(t, strings.HasSuffix(lines[0], ",alpha_20"))
	assert.True(t, strings.HasPrefix(lines[1], "093000,1.5,0.0,"))
	assert.Len(t, strings.Split(lines[1], ","), models.NumFactors+1)
	assert.True(t, strings.HasPrefix(lines[2], "093001,2.0,"))

	require.Error(t, w.Write(record("20240104_093000", 1)))
	again, err := w.Close()
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestCSVDayWriterFullDateNaming(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVDayWriter(dir, "yyyymmdd")
	require.NoError(t, w.Write(record("20240102_093000", 1)))
	paths, err := w.Close()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "20240102.csv")}, paths)
}

func TestCSVDayWriterConcurrent(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVDayWriter(dir, "mmdd")
	days := []string{"20240102", "20240103", "20240104", "20240105"}

	var wg sync.WaitGroup
	for _, day := range days {
		wg.Add(1)
		go func(day string) {
			defer wg.Done()
			for _, tm := range []string{"093000", "093001", "093002"} {
				assert.NoError(t, w.Write(record(day+"_"+tm, 1)))
			}
		}(day)
	}
	wg.Wait()

	paths, err := w.Close()
	require.NoError(t, err)
	require.Len(t, paths, len(days))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, 4, strings.Count(string(data), "\n"))
	}
}

func TestParquetDayWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewParquetDayWriter(dir, "mmdd", "snappy")
	require.NoError(t, err)

	require.NoError(t, w.Write(record("20240102_093000", 1.5)))
	require.NoError(t, w.Write(record("20240102_100000", 2.5)))
	require.NoError(t, w.Write(record("bad", 1)))
	paths, err := w.Close()
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "0102.parquet")}, paths)

	fr, err := local.NewLocalFileReader(paths[0])
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(factorRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(2), pr.GetNumRows())

	rows := make([]factorRow, 2)
	require.NoError(t, pr.Read(&rows))
	assert.Equal(t, "093000", rows[0].TradeTime)
	assert.Equal(t, float32(1.5), rows[0].Alpha1)
	assert.Equal(t, "100000", rows[1].TradeTime)
	assert.Equal(t, float32(2.5), rows[1].Alpha1)
}

func TestNewDayWriter(t *testing.T) {
	cfg := appconfig.Default()
	cfg.Output.Dir = t.TempDir()

	w, err := New(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &CSVDayWriter{}, w)

	cfg.Output.Format = "parquet"
	w, err = New(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &ParquetDayWriter{}, w)

	cfg.Output.Parquet.Compression = "brotli9"
	_, err = New(&cfg)
	require.Error(t, err)

	cfg.Output.Format = "xml"
	_, err = New(&cfg)
	require.Error(t, err)
}

type fakeS3 struct {
	mu   sync.Mutex
	puts map[string]string
	meta map[string]map[string]string
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[aws.ToString(in.Key)] = string(body)
	f.meta[aws.ToString(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func uploaderConfig() *appconfig.Config {
	cfg := appconfig.Default()
	cfg.Job.Name = "daily-factors"
	cfg.Storage.S3.Bucket = "factor-output"
	cfg.Storage.S3.Prefix = "/alpha/"
	cfg.Storage.S3.UploadsPerSecond = 100
	return &cfg
}

func TestUploaderObjectKey(t *testing.T) {
	u := newUploader(&fakeS3{}, uploaderConfig(), "job-1")
	assert.Equal(t, "alpha/daily-factors/0102.csv", u.ObjectKey("/tmp/out/0102.csv"))

	cfg := uploaderConfig()
	cfg.Storage.S3.Prefix = ""
	u = newUploader(&fakeS3{}, cfg, "job-1")
	assert.Equal(t, "daily-factors/0102.csv", u.ObjectKey("0102.csv"))
}

func TestUploaderUpload(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "0102.csv")
	require.NoError(t, os.WriteFile(file, []byte("tradeTime\n"), 0o644))

	fake := &fakeS3{puts: map[string]string{}, meta: map[string]map[string]string{}}
	u := newUploader(fake, uploaderConfig(), "job-1")
	require.NoError(t, u.Upload(context.Background(), []string{file}))

	assert.Equal(t, "tradeTime\n", fake.puts["alpha/daily-factors/0102.csv"])
	assert.Equal(t, "job-1", fake.meta["alpha/daily-factors/0102.csv"]["job-id"])
	assert.Equal(t, "csv", fake.meta["alpha/daily-factors/0102.csv"]["format"])

	fake.err = assert.AnError
	require.ErrorIs(t, u.Upload(context.Background(), []string{file}), assert.AnError)
	require.Error(t, u.Upload(context.Background(), []string{filepath.Join(dir, "missing.csv")}))
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVDayWriter(dir, "mmdd")
	require.NoError(t, w.Write(record("20240102_093000", 1)))
	require.NoError(t, w.Write(record("20240102_093001", 1)))
	paths, err := w.Close()
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Rows(paths[0]))
	assert.Zero(t, w.Rows("missing.csv"))

	files, err := NewDataFiles(paths, w.Rows)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "0102", files[0].Day)
	assert.Positive(t, files[0].FileSize)

	_, err = WriteManifest(dir, Manifest{JobID: "job-1", Format: "csv", Files: files})
	require.NoError(t, err)
	m, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "job-1", m.JobID)
	assert.Equal(t, files, m.Files)

	_, err = NewDataFiles([]string{filepath.Join(dir, "gone.csv")}, w.Rows)
	require.Error(t, err)
}
