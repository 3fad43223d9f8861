package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultBufferSize is the read buffer used when none is configured.
const DefaultBufferSize = 1 << 20

// LineReader yields newline terminated records from a stream. The slice
// returned by Next is only valid until the following call.
type LineReader struct {
	br   *bufio.Reader
	line []byte
	err  error
}

// NewLineReader wraps r with a read buffer of bufSize bytes.
func NewLineReader(r io.Reader, bufSize int) *LineReader {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &LineReader{br: bufio.NewReaderSize(r, bufSize)}
}

// Next returns the next record without its line terminator. It returns
// io.EOF once the stream is drained.
func (lr *LineReader) Next() ([]byte, error) {
	if lr.err != nil {
		return nil, lr.err
	}
	lr.line = lr.line[:0]
	for {
		chunk, err := lr.br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			lr.line = append(lr.line, chunk...)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			lr.err = err
			return nil, err
		}

		var out []byte
		if len(lr.line) > 0 {
			lr.line = append(lr.line, chunk...)
			out = lr.line
		} else {
			out = chunk
		}
		if err != nil {
			lr.err = io.EOF
			if len(out) == 0 {
				return nil, io.EOF
			}
		}
		if n := len(out); n > 0 && out[n-1] == '\n' {
			out = out[:n-1]
		}
		if n := len(out); n > 0 && out[n-1] == '\r' {
			out = out[:n-1]
		}
		return out, nil
	}
}

// Split is a unit of work handed to one worker: a list of whole files
// processed in order.
type Split struct {
	ID    int
	Files []string
	Bytes int64
}

// SplitReader streams the records of every file in a split in order.
type SplitReader struct {
	split   Split
	bufSize int
	idx     int
	file    *os.File
	gz      *gzip.Reader
	lines   *LineReader
}

// OpenSplit prepares a reader over split. Files are opened lazily.
func OpenSplit(split Split, bufSize int) *SplitReader {
	return &SplitReader{split: split, bufSize: bufSize}
}

// Next returns the next record of the split or io.EOF after the last file.
func (sr *SplitReader) Next() ([]byte, error) {
	for {
		if sr.lines == nil {
			if sr.idx >= len(sr.split.Files) {
				return nil, io.EOF
			}
			if err := sr.open(sr.split.Files[sr.idx]); err != nil {
				return nil, err
			}
			sr.idx++
		}
		line, err := sr.lines.Next()
		if err == nil {
			return line, nil
		}
		path := sr.file.Name()
		if cerr := sr.closeCurrent(); cerr != nil && errors.Is(err, io.EOF) {
			return nil, cerr
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
}

func (sr *SplitReader) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to open gzip input %s: %w", path, err)
		}
		sr.gz = gz
		r = gz
	}
	sr.file = f
	sr.lines = NewLineReader(r, sr.bufSize)
	return nil
}

func (sr *SplitReader) closeCurrent() error {
	var err error
	if sr.gz != nil {
		err = sr.gz.Close()
		sr.gz = nil
	}
	if sr.file != nil {
		if cerr := sr.file.Close(); err == nil {
			err = cerr
		}
		sr.file = nil
	}
	sr.lines = nil
	return err
}

// Close releases the file currently open, if any.
func (sr *SplitReader) Close() error {
	return sr.closeCurrent()
}
