package output

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrRecorderClosed = errors.New("recorder is closed")

// Recorder appends wire messages to a newline-delimited JSON file. The file
// is opened in append mode on first write and is never truncated.
type Recorder struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	w      *bufio.Writer
	closed bool
}

func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

func (r *Recorder) Path() string {
	return r.path
}

// Record appends msg and a trailing newline, flushing before it returns.
func (r *Recorder) Record(msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	if r.f == nil {
		if err := r.open(); err != nil {
			return err
		}
	}
	if _, err := r.w.Write(msg); err != nil {
		return r.fail(err)
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return r.fail(err)
	}
	if err := r.w.Flush(); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Recorder) open() error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create recording dir: %w", err)
		}
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	r.f = f
	r.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

// fail drops the handle so the next Record reopens the file. A partially
// buffered line is discarded with it.
func (r *Recorder) fail(err error) error {
	_ = r.f.Close()
	r.f = nil
	r.w = nil
	return fmt.Errorf("write recording: %w", err)
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.f == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		r.f = nil
		return err
	}
	err := r.f.Close()
	r.f = nil
	r.w = nil
	return err
}
