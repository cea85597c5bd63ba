// Buffer pools for the frame encoding hot path
//
// Every consumed tick produces a JSON frame for the recorder. Buffers are
// reused across frames instead of allocated per tick.
//
// Usage:
//
//	b := pool.GetByteBuffer()
//	defer pool.PutByteBuffer(b)
//	// encode into b...
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"sync"
	"sync/atomic"
)

// maxPooledBuffer is the largest capacity returned to the pool.
const maxPooledBuffer = 16 * 1024

// ByteBuffer is an append-only byte buffer implementing io.Writer.
type ByteBuffer struct {
	buf []byte
}

var (
	byteBufferPool = sync.Pool{
		New: func() any {
			allocs.Add(1)
			return &ByteBuffer{buf: make([]byte, 0, 512)}
		},
	}

	gets     atomic.Uint64
	allocs   atomic.Uint64
	discards atomic.Uint64
)

// GetByteBuffer gets an empty buffer from the pool
func GetByteBuffer() *ByteBuffer {
	gets.Add(1)
	b := byteBufferPool.Get().(*ByteBuffer)
	b.buf = b.buf[:0]
	return b
}

// PutByteBuffer returns a buffer to the pool. Oversized buffers are dropped.
func PutByteBuffer(b *ByteBuffer) {
	if b == nil {
		return
	}
	if cap(b.buf) > maxPooledBuffer {
		discards.Add(1)
		return
	}
	byteBufferPool.Put(b)
}

// Bytes returns the buffer contents
func (b *ByteBuffer) Bytes() []byte {
	return b.buf
}

// Write appends p to the buffer
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteByte appends a single byte
func (b *ByteBuffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// Len returns the buffer length
func (b *ByteBuffer) Len() int {
	return len(b.buf)
}

// Reset clears the buffer, keeping its capacity
func (b *ByteBuffer) Reset() {
	b.buf = b.buf[:0]
}

// Stats holds pool usage counters.
type Stats struct {
	Gets     uint64
	Allocs   uint64
	Discards uint64
}

// GetStats returns the pool counters since process start.
func GetStats() Stats {
	return Stats{
		Gets:     gets.Load(),
		Allocs:   allocs.Load(),
		Discards: discards.Load(),
	}
}
