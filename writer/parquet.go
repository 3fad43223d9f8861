package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"alphaflow/logger"
	"alphaflow/models"
)

// factorRow defines the parquet schema of a day file.
type factorRow struct {
	TradeTime string  `parquet:"name=tradeTime, type=BYTE_ARRAY, convertedtype=UTF8"`
	Alpha1    float32 `parquet:"name=alpha_1, type=FLOAT"`
	Alpha2    float32 `parquet:"name=alpha_2, type=FLOAT"`
	Alpha3    float32 `parquet:"name=alpha_3, type=FLOAT"`
	Alpha4    float32 `parquet:"name=alpha_4, type=FLOAT"`
	Alpha5    float32 `parquet:"name=alpha_5, type=FLOAT"`
	Alpha6    float32 `parquet:"name=alpha_6, type=FLOAT"`
	Alpha7    float32 `parquet:"name=alpha_7, type=FLOAT"`
	Alpha8    float32 `parquet:"name=alpha_8, type=FLOAT"`
	Alpha9    float32 `parquet:"name=alpha_9, type=FLOAT"`
	Alpha10   float32 `parquet:"name=alpha_10, type=FLOAT"`
	Alpha11   float32 `parquet:"name=alpha_11, type=FLOAT"`
	Alpha12   float32 `parquet:"name=alpha_12, type=FLOAT"`
	Alpha13   float32 `parquet:"name=alpha_13, type=FLOAT"`
	Alpha14   float32 `parquet:"name=alpha_14, type=FLOAT"`
	Alpha15   float32 `parquet:"name=alpha_15, type=FLOAT"`
	Alpha16   float32 `parquet:"name=alpha_16, type=FLOAT"`
	Alpha17   float32 `parquet:"name=alpha_17, type=FLOAT"`
	Alpha18   float32 `parquet:"name=alpha_18, type=FLOAT"`
	Alpha19   float32 `parquet:"name=alpha_19, type=FLOAT"`
	Alpha20   float32 `parquet:"name=alpha_20, type=FLOAT"`
}

func newFactorRow(tm string, v *models.Vector) factorRow {
	return factorRow{
		TradeTime: tm,
		Alpha1:    v[0], Alpha2: v[1], Alpha3: v[2], Alpha4: v[3], Alpha5: v[4],
		Alpha6: v[5], Alpha7: v[6], Alpha8: v[7], Alpha9: v[8], Alpha10: v[9],
		Alpha11: v[10], Alpha12: v[11], Alpha13: v[12], Alpha14: v[13], Alpha15: v[14],
		Alpha16: v[15], Alpha17: v[16], Alpha18: v[17], Alpha19: v[18], Alpha20: v[19],
	}
}

func parquetCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "snappy", "":
		return parquet.CompressionCodec_SNAPPY, nil
	case "gzip":
		return parquet.CompressionCodec_GZIP, nil
	case "uncompressed", "none":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	}
	return 0, fmt.Errorf("unsupported parquet compression '%s'", name)
}

type parquetFile struct {
	path string
	fw   source.ParquetFile
	pw   *writer.ParquetWriter
	rows int64
}

// ParquetDayWriter writes <name>.parquet files holding the same columns as
// the CSV output. Safe for concurrent use.
type ParquetDayWriter struct {
	dir    string
	naming string
	codec  parquet.CompressionCodec

	mu     sync.Mutex
	files  map[string]*parquetFile
	rows   map[string]int64
	closed bool
	log    *logger.Log
}

func NewParquetDayWriter(dir, naming, compression string) (*ParquetDayWriter, error) {
	codec, err := parquetCodec(compression)
	if err != nil {
		return nil, err
	}
	return &ParquetDayWriter{
		dir:    dir,
		naming: naming,
		codec:  codec,
		files:  make(map[string]*parquetFile),
		rows:   make(map[string]int64),
		log:    logger.GetLogger(),
	}, nil
}

func (w *ParquetDayWriter) Write(rec *models.OutputRecord) error {
	day, tm, ok := splitKey(rec.Key)
	if !ok {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("parquet day writer is closed")
	}

	name := fileBase(day, w.naming)
	pf, ok := w.files[name]
	if !ok {
		var err error
		if pf, err = w.open(name); err != nil {
			return err
		}
		w.files[name] = pf
	}
	if err := pf.pw.Write(newFactorRow(string(tm), &rec.Means)); err != nil {
		return fmt.Errorf("failed to write parquet row: %w", err)
	}
	pf.rows++
	return nil
}

func (w *ParquetDayWriter) open(name string) (*parquetFile, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(w.dir, name+".parquet")
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create day file: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(factorRow), 1)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = w.codec
	return &parquetFile{path: path, fw: fw, pw: pw}, nil
}

func (w *ParquetDayWriter) Close() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, nil
	}
	w.closed = true

	var firstErr error
	paths := make([]string, 0, len(w.files))
	for _, pf := range w.files {
		if err := pf.pw.WriteStop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to finish %s: %w", pf.path, err)
		}
		if err := pf.fw.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", pf.path, err)
		}
		w.log.WithComponent("day_writer").WithFields(logger.Fields{
			"file": pf.path,
			"rows": pf.rows,
		}).Debug("day file closed")
		w.rows[pf.path] = pf.rows
		paths = append(paths, pf.path)
	}
	sort.Strings(paths)
	return paths, firstErr
}

func (w *ParquetDayWriter) Rows(path string) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows[path]
}
