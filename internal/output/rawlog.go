package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const rawLogMagic = "LEAPRAW1"

var ErrBadMagic = errors.New("unexpected rawlog magic")

// RawLogWriter keeps every raw bridge payload for offline debugging. Each
// record is an 8 byte unix-nano timestamp, a 4 byte length and the payload,
// all little endian, after an 8 byte magic header.
type RawLogWriter struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
	now  func() time.Time
}

func NewRawLogWriter(outputDir string, prefix string) (*RawLogWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.bin", timestamp, prefix))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1024*1024)
	if _, err := w.WriteString(rawLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &RawLogWriter{
		f:    f,
		w:    w,
		path: filename,
		now:  time.Now,
	}, nil
}

func (r *RawLogWriter) Path() string {
	return r.path
}

func (r *RawLogWriter) Record(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("raw log writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(r.now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(payload); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *RawLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		r.w = nil
		return err
	}
	err := r.f.Close()
	r.w = nil
	return err
}

type RawRecord struct {
	Timestamp time.Time
	Payload   []byte
}

// RawLogReader reads records written by RawLogWriter.
type RawLogReader struct {
	r io.Reader
}

func NewRawLogReader(r io.Reader) (*RawLogReader, error) {
	header := make([]byte, len(rawLogMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(header) != rawLogMagic {
		return nil, fmt.Errorf("%w %q", ErrBadMagic, string(header))
	}
	return &RawLogReader{r: r}, nil
}

// Next returns io.EOF after the last complete record. A truncated trailing
// record is also reported as io.EOF.
func (rr *RawLogReader) Next() (RawRecord, error) {
	var meta [12]byte
	if _, err := io.ReadFull(rr.r, meta[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return RawRecord{}, io.EOF
		}
		return RawRecord{}, err
	}
	ts := int64(binary.LittleEndian.Uint64(meta[:8]))
	size := binary.LittleEndian.Uint32(meta[8:12])
	payload := make([]byte, size)
	if _, err := io.ReadFull(rr.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return RawRecord{}, io.EOF
		}
		return RawRecord{}, err
	}
	return RawRecord{Timestamp: time.Unix(0, ts), Payload: payload}, nil
}
