package writer

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	appconfig "alphaflow/config"
	"alphaflow/factor"
	"alphaflow/logger"
	"alphaflow/models"
)

// DayWriter routes finalized records into one file per trading day.
type DayWriter interface {
	Write(rec *models.OutputRecord) error
	// Close flushes every open file and returns the written paths, sorted.
	Close() ([]string, error)
	// Rows reports how many records went into the file at path.
	Rows(path string) int64
}

// New returns the day writer for the configured output format.
func New(cfg *appconfig.Config) (DayWriter, error) {
	switch cfg.Output.Format {
	case "csv", "":
		return NewCSVDayWriter(cfg.Output.Dir, cfg.Output.Naming), nil
	case "parquet":
		return NewParquetDayWriter(cfg.Output.Dir, cfg.Output.Naming, cfg.Output.Parquet.Compression)
	}
	return nil, fmt.Errorf("unsupported output format '%s'", cfg.Output.Format)
}

// splitKey separates a YYYYMMDD_HHMMSS key into its day and time parts.
func splitKey(key []byte) (day, tm []byte, ok bool) {
	i := bytes.IndexByte(key, '_')
	if i < 0 {
		return nil, nil, false
	}
	return key[:i], key[i+1:], true
}

// fileBase names a day file. "mmdd" keeps the last four digits of an
// eight-digit day.
func fileBase(day []byte, naming string) string {
	if naming != "yyyymmdd" && len(day) == 8 {
		return string(day[4:])
	}
	return string(day)
}

var csvHeader = func() []byte {
	b := []byte("tradeTime")
	for _, name := range factor.AlphaNames {
		b = append(b, ',')
		b = append(b, name...)
	}
	return append(b, '\n')
}()

type csvFile struct {
	f    *os.File
	w    *bufio.Writer
	rows int64
}

// CSVDayWriter writes <name>.csv files with a tradeTime column followed by
// the factor means. Safe for concurrent use.
type CSVDayWriter struct {
	dir    string
	naming string

	mu     sync.Mutex
	files  map[string]*csvFile
	rows   map[string]int64
	closed bool
	log    *logger.Log
}

func NewCSVDayWriter(dir, naming string) *CSVDayWriter {
	return &CSVDayWriter{
		dir:    dir,
		naming: naming,
		files:  make(map[string]*csvFile),
		rows:   make(map[string]int64),
		log:    logger.GetLogger(),
	}
}

// Write appends rec to its day file. Keys without a day separator are
// dropped.
func (w *CSVDayWriter) Write(rec *models.OutputRecord) error {
	day, tm, ok := splitKey(rec.Key)
	if !ok {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("csv day writer is closed")
	}

	name := fileBase(day, w.naming)
	cf, ok := w.files[name]
	if !ok {
		var err error
		if cf, err = w.open(name); err != nil {
			return err
		}
		w.files[name] = cf
	}

	cf.w.Write(tm)
	cf.w.WriteByte(',')
	cf.w.Write(rec.Value)
	if err := cf.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write %s: %w", cf.f.Name(), err)
	}
	cf.rows++
	return nil
}

func (w *CSVDayWriter) open(name string) (*csvFile, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(w.dir, name+".csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to create day file: %w", err)
	}
	bw := bufio.NewWriterSize(f, 64<<10)
	if _, err := bw.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &csvFile{f: f, w: bw}, nil
}

func (w *CSVDayWriter) Close() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, nil
	}
	w.closed = true

	var firstErr error
	paths := make([]string, 0, len(w.files))
	for _, cf := range w.files {
		if err := cf.w.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to flush %s: %w", cf.f.Name(), err)
		}
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", cf.f.Name(), err)
		}
		w.log.WithComponent("day_writer").WithFields(logger.Fields{
			"file": cf.f.Name(),
			"rows": cf.rows,
		}).Debug("day file closed")
		w.rows[cf.f.Name()] = cf.rows
		paths = append(paths, cf.f.Name())
	}
	sort.Strings(paths)
	return paths, firstErr
}

func (w *CSVDayWriter) Rows(path string) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows[path]
}
