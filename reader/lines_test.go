package reader

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func readAll(t *testing.T, next func() ([]byte, error)) []string {
	t.Helper()
	var out []string
	for {
		line, err := next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, string(line))
	}
}

func TestLineReader(t *testing.T) {
	long := strings.Repeat("x", 40)
	in := "a,b\r\n" + long + "\n\nlast"
	lr := NewLineReader(strings.NewReader(in), 16)
	got := readAll(t, lr.Next)
	want := []string{"a,b", long, "", "last"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSplitReaderAcrossFilesAndGzip(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "a.csv")
	writeFile(t, plain, "1\n2\n")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("3\n4"))
	zw.Close()
	gz := filepath.Join(dir, "b.csv.gz")
	writeFile(t, gz, buf.String())

	sr := OpenSplit(Split{Files: []string{plain, gz}}, 0)
	defer sr.Close()
	got := readAll(t, sr.Next)
	if strings.Join(got, ",") != "1,2,3,4" {
		t.Fatalf("records = %q", got)
	}
}

func TestSplitReaderMissingFile(t *testing.T) {
	sr := OpenSplit(Split{Files: []string{filepath.Join(t.TempDir(), "nope.csv")}}, 0)
	if _, err := sr.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestDiscoverAndPlan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "d1", "x.csv"), "12345")
	writeFile(t, filepath.Join(dir, "d1", "_SUCCESS"), "")
	writeFile(t, filepath.Join(dir, "d2", "y.csv"), "1234567890")
	writeFile(t, filepath.Join(dir, "z.csv"), "123")
	writeFile(t, filepath.Join(dir, ".hidden", "w.csv"), "1")

	flat, err := Discover([]string{dir}, false)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(flat) != 1 || filepath.Base(flat[0]) != "z.csv" {
		t.Fatalf("non-recursive = %v", flat)
	}

	files, err := Discover([]string{dir}, true)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("recursive = %v", files)
	}

	splits, err := PlanSplits(files, 5, 12)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	// x(5) | y(10) | z(3) would make y+z 13 > 12
	if len(splits) != 3 {
		t.Fatalf("splits = %+v", splits)
	}
	one, _ := PlanSplits(files, 1<<30, 0)
	if len(one) != 1 || one[0].Bytes != 18 {
		t.Fatalf("single split = %+v", one)
	}
}
