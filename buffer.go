package uvlc

import (
	"encoding/binary"
)

// bitReader reads a video payload bit by bit. The payload is a sequence of
// 32-bit little-endian words, each consumed from its most significant bit.
//
// Reads past the end of data return zero bits; hasEnded reports whether more
// bits were consumed than the payload holds.
type bitReader struct {
	data []byte

	bitIndex int

	// chunk caches words chunkWord and chunkWord+1.
	chunk     uint64
	chunkWord int
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{
		data:      data,
		chunkWord: -1,
	}
}

// Index returns byte index.
func (b *bitReader) Index() int {
	return b.bitIndex >> 3
}

// Size returns the payload size in bits.
func (b *bitReader) Size() int {
	return len(b.data) << 3
}

// Remaining returns the number of unread bits, or zero once the reader ran past the end.
func (b *bitReader) Remaining() int {
	if r := b.Size() - b.bitIndex; r > 0 {
		return r
	}

	return 0
}

func (b *bitReader) hasEnded() bool {
	return b.bitIndex > b.Size()
}

// word returns the i-th 32-bit word. A short final word is zero padded.
func (b *bitReader) word(i int) uint32 {
	off := i << 2
	if off < 0 || off >= len(b.data) {
		return 0
	}

	if off+4 <= len(b.data) {
		return binary.LittleEndian.Uint32(b.data[off:])
	}

	var tmp [4]byte
	copy(tmp[:], b.data[off:])

	return binary.LittleEndian.Uint32(tmp[:])
}

func (b *bitReader) load() {
	w := b.bitIndex >> 5
	if w != b.chunkWord {
		b.chunk = uint64(b.word(w))<<32 | uint64(b.word(w+1))
		b.chunkWord = w
	}
}

// peek returns the next count bits (0--32) without consuming them.
func (b *bitReader) peek(count int) uint32 {
	if count == 0 {
		return 0
	}

	b.load()

	return uint32(b.chunk << (b.bitIndex & 31) >> (64 - count))
}

// window returns the next 64 bits without consuming them.
func (b *bitReader) window() uint64 {
	b.load()

	shift := b.bitIndex & 31
	if shift == 0 {
		return b.chunk
	}

	w := b.bitIndex >> 5

	return b.chunk<<shift | uint64(b.word(w+2))>>(32-shift)
}

func (b *bitReader) read(count int) int {
	value := b.peek(count)
	b.bitIndex += count

	return int(value)
}

func (b *bitReader) read1() int {
	return b.read(1)
}

func (b *bitReader) skip(count int) {
	b.bitIndex += count
}

func (b *bitReader) align() {
	b.bitIndex = ((b.bitIndex + 7) >> 3) << 3 // Align to next byte
}
