package utils

import "testing"

func TestBufferPoolGetReturnsEmptyBuffer(t *testing.T) {
	p := NewBufferPool()
	buf := p.Get()
	if buf.Len() != 0 {
		t.Errorf("fresh buffer Len() = %d, want 0", buf.Len())
	}
	buf.WriteString("hello")
	p.Put(buf)

	reused := p.Get()
	if reused.Len() != 0 {
		t.Errorf("reused buffer must be reset, Len() = %d, want 0", reused.Len())
	}
}

func TestBufferPoolRejectsOversizedBuffers(t *testing.T) {
	p := NewBufferPool()
	buf := p.Get()
	buf.Grow(2 * 1024 * 1024)
	buf.WriteByte('x') // force the backing array to actually grow
	p.Put(buf)         // should be silently dropped, not panic
}

func TestBufferPoolPutNilIsNoop(t *testing.T) {
	p := NewBufferPool()
	p.Put(nil) // must not panic
}

func TestBytePoolGetReturnsFixedSize(t *testing.T) {
	p := NewBytePool(64)
	b := p.Get()
	if len(b) != 64 {
		t.Errorf("Get() length = %d, want 64", len(b))
	}
	p.Put(b)

	b2 := p.Get()
	if len(b2) != 64 {
		t.Errorf("reused Get() length = %d, want 64", len(b2))
	}
}

func TestBytePoolPutRejectsUndersized(t *testing.T) {
	p := NewBytePool(64)
	small := make([]byte, 8)
	p.Put(small) // must not panic; pool should just drop it
}

func TestScreenshotBufferPoolReuseAndBounds(t *testing.T) {
	p := NewScreenshotBufferPool(2, 1024)

	stats := p.Stats()
	if stats.AvailableBuffers != 0 || stats.MaxBuffers != 2 || stats.BufferSize != 1024 {
		t.Fatalf("initial Stats() = %+v, want {0 2 1024}", stats)
	}

	b1 := p.GetBuffer()
	if cap(b1) != 1024 || len(b1) != 0 {
		t.Errorf("GetBuffer() cap=%d len=%d, want cap 1024 len 0", cap(b1), len(b1))
	}

	p.ReturnBuffer(b1)
	p.ReturnBuffer(make([]byte, 0, 1024))
	p.ReturnBuffer(make([]byte, 0, 1024)) // pool at capacity, should be dropped

	if got := p.Stats().AvailableBuffers; got != 2 {
		t.Errorf("AvailableBuffers after over-capacity return = %d, want 2 (bounded by maxBuffers)", got)
	}
}
