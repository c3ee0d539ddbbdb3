// Package history appends processed ride samples to a per-session CSV
// file.
package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/sensor"
)

var header = []string{"timestamp", "power", "cadence", "speed", "incline"}

// Writer is a ride-history sink. The file is created lazily on the
// first row; the header is written once when the file is empty.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	csv  *csv.Writer
}

// NewWriter picks a fresh session file under dir.
func NewWriter(dir string) *Writer {
	name := fmt.Sprintf("ride-%s.csv", uuid.NewString())
	return &Writer{path: filepath.Join(dir, name)}
}

// Path returns the session file path.
func (w *Writer) Path() string { return w.path }

// Append writes one sample row.
func (w *Writer) Append(r sensor.Reading) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(); err != nil {
			return err
		}
	}

	row := []string{
		strconv.FormatInt(r.Timestamp.Unix(), 10),
		strconv.Itoa(r.Power),
		strconv.Itoa(r.Cadence),
		strconv.FormatFloat(r.SpeedKph, 'f', 1, 64),
		strconv.FormatFloat(r.Incline, 'f', 0, 64),
	}
	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

func (w *Writer) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.csv = csv.NewWriter(f)

	info, err := f.Stat()
	if err == nil && info.Size() == 0 {
		if err := w.csv.Write(header); err != nil {
			return err
		}
		w.csv.Flush()
	}
	return w.csv.Error()
}

// Close flushes and closes the session file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	err := w.file.Close()
	w.file = nil
	return err
}
