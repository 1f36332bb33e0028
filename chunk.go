package screenrec

import (
	"io"
	"sync"
)

// chunkBuffer collects muxer output between flushes. The muxer writes into
// it and the recorder drains it with take.
type chunkBuffer struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
	done   chan struct{}
}

func newChunkBuffer() *chunkBuffer {
	return &chunkBuffer{done: make(chan struct{})}
}

func (b *chunkBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Close rejects further writes. Buffered bytes stay available to take.
func (b *chunkBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

// Done is closed by Close.
func (b *chunkBuffer) Done() <-chan struct{} { return b.done }

// take returns the bytes written since the previous call, or nil.
func (b *chunkBuffer) take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	out := b.buf
	b.buf = nil
	return out
}

func (b *chunkBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// joinChunks concatenates chunks in order.
func joinChunks(chunks [][]byte) []byte {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
