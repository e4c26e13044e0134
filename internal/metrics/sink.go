package metrics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Sink receives time series keyed by training step.
type Sink interface {
	// Scalar records one value of the series tag at step.
	Scalar(step int, tag string, value float64) error
	// Matrix records a figure's underlying data (confusion matrices, bar
	// charts) for tag at step.
	Matrix(step int, tag string, m mat.Matrix) error
	// Text records free-form text such as the run parameter table.
	Text(tag, text string) error
	Close() error
}

// CSVSink writes scalars to <dir>/scalars.csv, matrices to
// <dir>/figures/<tag>_<step>.csv and text to <dir>/text/<tag>.txt.
type CSVSink struct {
	dir string
	f   *os.File
	w   *csv.Writer
}

// NewCSVSink creates dir and opens the scalar stream inside it.
func NewCSVSink(dir string) (*CSVSink, error) {
	for _, sub := range []string{"", "figures", "text"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("metrics: mkdir: %w", err)
		}
	}
	f, err := os.Create(filepath.Join(dir, "scalars.csv"))
	if err != nil {
		return nil, fmt.Errorf("metrics: create scalars: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"step", "tag", "value"}); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &CSVSink{dir: dir, f: f, w: w}, w.Error()
}

// Scalar implements Sink. Rows are flushed immediately so an aborted run
// keeps everything emitted so far.
func (s *CSVSink) Scalar(step int, tag string, value float64) error {
	if err := s.w.Write([]string{strconv.Itoa(step), tag, strconv.FormatFloat(value, 'g', -1, 64)}); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Matrix implements Sink.
func (s *CSVSink) Matrix(step int, tag string, m mat.Matrix) error {
	path := filepath.Join(s.dir, "figures", fmt.Sprintf("%s_%d.csv", sanitize(tag), step))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metrics: create figure: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	rows, cols := m.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Text implements Sink.
func (s *CSVSink) Text(tag, text string) error {
	path := filepath.Join(s.dir, "text", sanitize(tag)+".txt")
	return os.WriteFile(path, []byte(text), 0o644)
}

// Close flushes and closes the scalar stream.
func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func sanitize(tag string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(tag)
}

// Point is one recorded scalar.
type Point struct {
	Step  int
	Tag   string
	Value float64
}

// Memory keeps everything in memory; used by tests and dry runs.
type Memory struct {
	Points   []Point
	Matrices map[string]*mat.Dense
	Texts    map[string]string
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{
		Matrices: make(map[string]*mat.Dense),
		Texts:    make(map[string]string),
	}
}

// Scalar implements Sink.
func (m *Memory) Scalar(step int, tag string, value float64) error {
	m.Points = append(m.Points, Point{Step: step, Tag: tag, Value: value})
	return nil
}

// Matrix implements Sink. The last matrix per tag is kept.
func (m *Memory) Matrix(step int, tag string, data mat.Matrix) error {
	m.Matrices[tag] = mat.DenseCopyOf(data)
	return nil
}

// Text implements Sink.
func (m *Memory) Text(tag, text string) error {
	m.Texts[tag] = text
	return nil
}

// Close implements Sink.
func (m *Memory) Close() error { return nil }

// Series returns the points recorded under tag in emission order.
func (m *Memory) Series(tag string) []Point {
	var out []Point
	for _, p := range m.Points {
		if p.Tag == tag {
			out = append(out, p)
		}
	}
	return out
}

// SaveJSON persists an artifact such as a per-epoch accuracy table as
// indented JSON at path.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("metrics: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("metrics: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
