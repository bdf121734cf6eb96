// Package utils provides high-performance buffer pooling to reduce GC pressure.
package utils

import (
	"bytes"
	"sync"
)

// BufferPool provides a pool of reusable bytes.Buffer objects.
// This significantly reduces memory allocations in high-throughput scenarios.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Get retrieves a buffer from the pool.
// The buffer is reset and ready for use.
func (p *BufferPool) Get() *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool.
func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	// Prevent memory leak: drop if too large
	if buf.Cap() > 1024*1024 { // 1MB limit
		return // Let GC collect large buffers
	}
	p.pool.Put(buf)
}

// Global instance for package-level convenience
var defaultBufferPool = NewBufferPool()

// GetBuffer gets a buffer from the default pool.
func GetBuffer() *bytes.Buffer {
	return defaultBufferPool.Get()
}

// PutBuffer returns a buffer to the default pool.
func PutBuffer(buf *bytes.Buffer) {
	defaultBufferPool.Put(buf)
}

// BytePool provides a pool of reusable byte slices.
type BytePool struct {
	pool sync.Pool
	size int
}

// NewBytePool creates a new byte slice pool with fixed size.
func NewBytePool(size int) *BytePool {
	return &BytePool{
		pool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, size)
				return &b
			},
		},
		size: size,
	}
}

// Get retrieves a byte slice from the pool.
func (p *BytePool) Get() []byte {
	b := p.pool.Get().(*[]byte)
	return (*b)[:p.size]
}

// Put returns a byte slice to the pool.
func (p *BytePool) Put(b []byte) {
	if cap(b) < p.size {
		return
	}
	p.pool.Put(&b)
}

// BufferStats summarizes a ScreenshotBufferPool's occupancy.
type BufferStats struct {
	AvailableBuffers int
	MaxBuffers       int
	BufferSize       int
}

// ScreenshotBufferPool is a bounded pool of fixed-capacity []byte buffers
// sized for raw screenshot/transcode payloads. Unlike BufferPool/BytePool
// above, it tracks occupancy explicitly so callers can report BufferStats.
type ScreenshotBufferPool struct {
	mu         sync.Mutex
	available  [][]byte
	maxBuffers int
	bufferSize int
}

// NewScreenshotBufferPool creates a pool that holds at most maxBuffers
// buffers of bufferSize capacity each.
func NewScreenshotBufferPool(maxBuffers, bufferSize int) *ScreenshotBufferPool {
	return &ScreenshotBufferPool{
		maxBuffers: maxBuffers,
		bufferSize: bufferSize,
	}
}

// GetBuffer returns a buffer from the pool, or a freshly allocated one if the
// pool is empty.
func (p *ScreenshotBufferPool) GetBuffer() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.available); n > 0 {
		buf := p.available[n-1]
		p.available = p.available[:n-1]
		return buf[:0]
	}
	return make([]byte, 0, p.bufferSize)
}

// ReturnBuffer gives a buffer back to the pool. Buffers are dropped once the
// pool is at capacity.
func (p *ScreenshotBufferPool) ReturnBuffer(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.available) >= p.maxBuffers {
		return
	}
	p.available = append(p.available, buf)
}

// Stats reports the pool's current occupancy.
func (p *ScreenshotBufferPool) Stats() BufferStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return BufferStats{
		AvailableBuffers: len(p.available),
		MaxBuffers:       p.maxBuffers,
		BufferSize:       p.bufferSize,
	}
}
