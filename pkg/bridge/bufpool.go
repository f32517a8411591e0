package bridge

import "sync"

// ============================================================================
// Buffer Pool for File Bodies
// ============================================================================
//
// GetFile copies through a fixed-size buffer and PutFile reads whole bodies
// into memory before handing them to the gateway, so buffers are pooled by
// size class to keep GC pressure flat under concurrent editing sessions.
// Bodies larger than the largest class are allocated directly and dropped
// after use.

const (
	// smallBufferSize is the GetFile copy buffer and fits small uploads.
	smallBufferSize = 32 << 10 // 32KB

	// mediumBufferSize fits typical office documents.
	mediumBufferSize = 1 << 20 // 1MB

	// largeBufferSize fits large spreadsheets.
	largeBufferSize = 8 << 20 // 8MB
)

type bufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

func newSizedPool(size int) sync.Pool {
	return sync.Pool{
		New: func() any {
			buf := make([]byte, size)
			return &buf
		},
	}
}

var globalBufferPool = &bufferPool{
	small:  newSizedPool(smallBufferSize),
	medium: newSizedPool(mediumBufferSize),
	large:  newSizedPool(largeBufferSize),
}

// Get returns a slice of exactly size bytes, backed by a pooled buffer when
// size fits a class.
func (p *bufferPool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= smallBufferSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= mediumBufferSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= largeBufferSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns buf to its class. Buffers of any other capacity are left to
// the GC.
func (p *bufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}

	fullBuf := buf[:cap(buf)]
	switch cap(buf) {
	case smallBufferSize:
		p.small.Put(&fullBuf)
	case mediumBufferSize:
		p.medium.Put(&fullBuf)
	case largeBufferSize:
		p.large.Put(&fullBuf)
	}
}

func getBuffer(size int) []byte { return globalBufferPool.Get(size) }
func putBuffer(buf []byte)      { globalBufferPool.Put(buf) }
