package serialreader

import (
	"context"
	"errors"
	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"sync"
	"testing"
	"time"
)

// chunkPort hands out canned chunks, then behaves like a timed-out serial read.
type chunkPort struct {
	mu     sync.Mutex
	chunks []string
	reads  int
	closed chan struct{}
	once   sync.Once
}

func newChunkPort(chunks ...string) *chunkPort {
	return &chunkPort{chunks: chunks, closed: make(chan struct{})}
}

func (p *chunkPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	p.reads++
	if len(p.chunks) > 0 {
		n := copy(b, p.chunks[0])
		p.chunks[0] = p.chunks[0][n:]
		if p.chunks[0] == "" {
			p.chunks = p.chunks[1:]
		}
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	select {
	case <-p.closed:
		return 0, errors.New("bad file descriptor")
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (p *chunkPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func TestReaderOverPty(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	reader := NewReader(slave.Name(), slave)

	_, err = master.Write([]byte("23.5\n"))
	require.NoError(t, err)
	v, err := reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23.5, v)

	_, err = master.Write([]byte("not-a-number\n"))
	require.NoError(t, err)
	v, err = reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, v, "non-numeric records read as zero")

	_, err = master.Write([]byte("-1.2\n"))
	require.NoError(t, err)
	v, err = reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1.2, v)
}

func TestReaderSplitsCoalescedRecords(t *testing.T) {
	reader := NewReader("fake", newChunkPort("1.5\n2.5\n3", ".5\n"))
	ctx := context.Background()

	for _, want := range []float64{1.5, 2.5, 3.5} {
		v, err := reader.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestReaderBoundsRecordLength(t *testing.T) {
	long := strings.Repeat("9", RecordSize+10) + "\n"
	reader := NewReader("fake", newChunkPort(long))
	ctx := context.Background()

	first, err := reader.ReadRecord(ctx)
	require.NoError(t, err)
	assert.Len(t, first, RecordSize)

	second, err := reader.ReadRecord(ctx)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("9", 10)+"\n", string(second))
}

func TestReaderRetriesEmptyReads(t *testing.T) {
	port := newChunkPort()
	reader := NewReader("fake", port)

	go func() {
		time.Sleep(20 * time.Millisecond)
		port.mu.Lock()
		port.chunks = append(port.chunks, "8\n")
		port.mu.Unlock()
	}()

	v, err := reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8.0, v)
	assert.Greater(t, port.reads, 1)
}

func TestReaderCancel(t *testing.T) {
	reader := NewReader("fake", newChunkPort())
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := reader.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaderCloseUnblocksRead(t *testing.T) {
	reader := NewReader("fake", newChunkPort())

	errs := make(chan error, 1)
	go func() {
		_, err := reader.Read(context.Background())
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, reader.Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Read did not return after Close")
	}
}

func TestReaderCloseIsIdempotent(t *testing.T) {
	reader := NewReader("fake", newChunkPort())
	assert.NoError(t, reader.Close())
	assert.NoError(t, reader.Close())

	_, err := reader.Read(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(context.Background(), Config{Device: "/dev/does-not-exist-serial2influx"})
	require.Error(t, err)

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "/dev/does-not-exist-serial2influx", openErr.Device)
}
