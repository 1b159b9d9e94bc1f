package serialreader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// RecordSize bounds a single record, terminator included. Longer lines are
// delivered as several records.
const RecordSize = 64

// Port is the byte stream a Reader frames into records. A Read that returns
// no bytes and no error is treated as a timeout and retried.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// Reader turns newline-delimited records from a Port into readings. Read must
// only be called from one goroutine; Close may be called from any.
type Reader struct {
	device  string
	port    Port
	buf     []byte
	pending []byte

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func NewReader(device string, port Port) *Reader {
	return &Reader{
		device: device,
		port:   port,
		buf:    make([]byte, RecordSize),
	}
}

func (r *Reader) Device() string {
	return r.device
}

// Read blocks until one record is available and returns its lenient parse.
// It returns ctx.Err() if ctx is cancelled between port reads and ErrClosed
// once the reader is closed.
func (r *Reader) Read(ctx context.Context) (float64, error) {
	record, err := r.ReadRecord(ctx)
	if err != nil {
		return 0, err
	}
	return ParseReading(record), nil
}

// ReadRecord returns the next raw record, terminator included.
func (r *Reader) ReadRecord(ctx context.Context) ([]byte, error) {
	for {
		if record, ok := r.cut(); ok {
			return record, nil
		}
		if r.closed.Load() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.port.Read(r.buf)
		r.pending = append(r.pending, r.buf[:n]...)
		if err == nil {
			continue
		}
		switch {
		case r.closed.Load(), errors.Is(err, os.ErrClosed), errors.Is(err, io.EOF):
			return nil, ErrClosed
		case isTimeout(err):
			continue
		default:
			return nil, fmt.Errorf("read %s: %w", r.device, err)
		}
	}
}

// cut removes the first complete record from the pending bytes.
func (r *Reader) cut() ([]byte, bool) {
	limit := len(r.pending)
	if limit > RecordSize {
		limit = RecordSize
	}
	end := bytes.IndexByte(r.pending[:limit], '\n') + 1
	if end == 0 {
		if len(r.pending) < RecordSize {
			return nil, false
		}
		end = RecordSize
	}

	record := make([]byte, end)
	copy(record, r.pending[:end])
	r.pending = r.pending[end:]
	return record, true
}

// Close releases the port. It is safe to call more than once and from a
// goroutine other than the one blocked in Read.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.closeErr = r.port.Close()
	})
	return r.closeErr
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
