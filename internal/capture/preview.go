package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Preview holds the most recent JPEG-encoded frame for preview streams.
// Frames are only encoded while someone is watching.
type Preview struct {
	mu       sync.Mutex
	data     []byte
	seq      uint64
	changed  chan struct{}
	watchers atomic.Int32
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{changed: make(chan struct{})}
}

// Watching reports whether any stream is waiting for frames.
func (p *Preview) Watching() bool {
	return p.watchers.Load() > 0
}

// Publish encodes frame and wakes waiting streams. It is a no-op when
// nobody is watching or the frame is invalid.
func (p *Preview) Publish(frame *Frame) error {
	if !p.Watching() || !frame.Valid() {
		return nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame.Mat)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	p.Store(data)
	return nil
}

// Store replaces the current image with already encoded JPEG data.
func (p *Preview) Store(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = data
	p.seq++
	close(p.changed)
	p.changed = make(chan struct{})
}

// Next blocks until an image newer than after is available and returns it
// with its sequence number.
func (p *Preview) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	p.watchers.Add(1)
	defer p.watchers.Add(-1)

	for {
		p.mu.Lock()
		if p.seq > after && p.data != nil {
			data, seq := p.data, p.seq
			p.mu.Unlock()
			return data, seq, nil
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-changed:
		}
	}
}
