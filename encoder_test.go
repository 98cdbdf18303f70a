package uvlc

import (
	"encoding/binary"
	"math/bits"
)

// bitWriter produces the decoder's bit layout: 32-bit little-endian words,
// each filled from its most significant bit.
type bitWriter struct {
	words []uint32
	cur   uint32
	n     int
}

func (w *bitWriter) pos() int {
	return len(w.words)*32 + w.n
}

func (w *bitWriter) write(value uint32, count int) {
	for i := count - 1; i >= 0; i-- {
		w.cur = w.cur<<1 | (value>>i)&1
		w.n++
		if w.n == 32 {
			w.words = append(w.words, w.cur)
			w.cur = 0
			w.n = 0
		}
	}
}

func (w *bitWriter) align() {
	for w.pos()&7 != 0 {
		w.write(0, 1)
	}
}

func (w *bitWriter) bytes() []byte {
	words := w.words
	if w.n > 0 {
		words = append(words, w.cur<<(32-w.n))
	}

	b := make([]byte, len(words)*4)
	for i, v := range words {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}

	return b
}

func (w *bitWriter) writeRun(run int) {
	if run == 0 {
		w.write(1, 1)
		return
	}

	z := bits.Len(uint(run))
	w.write(1, z+1)
	w.write(uint32(run)&(1<<(z-1)-1), z-1)
}

func (w *bitWriter) writeLevel(level int) {
	sign := uint32(0)
	if level < 0 {
		sign = 1
		level = -level
	}

	if level == 1 {
		w.write(1, 1)
		w.write(sign, 1)
		return
	}

	z := bits.Len(uint(level))
	w.write(1, z+1)
	w.write(uint32(level)&(1<<(z-1)-1), z-1)
	w.write(sign, 1)
}

func (w *bitWriter) writeEOB() {
	w.writeRun(0)
	w.write(1, 2)
}

type testPair struct {
	run   int
	level int
}

type testBlock struct {
	dc int
	ac []testPair
}

type testMacroblock [6]testBlock

type testPicture struct {
	format     int
	resolution int
	number     uint32
	rows       [][]testMacroblock

	// markers overrides the start code of a slice.
	markers map[int]uint32
	// trailer overrides the end code when non-zero.
	trailer uint32
}

func (p *testPicture) encode() []byte {
	w := &bitWriter{}

	w.write(startPicture, 22)
	w.write(uint32(p.format), 2)
	w.write(uint32(p.resolution), 3)
	w.write(0, 3)
	w.write(0, 5)
	w.write(p.number, 32)

	for i, row := range p.rows {
		if i > 0 {
			w.align()
			marker, ok := p.markers[i]
			if !ok {
				marker = startPicture | uint32(i&31)
			}
			w.write(marker, 22)
			if marker == startSequence {
				return w.bytes()
			}
			w.write(0, 5)
		}

		for _, mb := range row {
			encodeMacroblock(w, &mb)
		}
	}

	w.align()
	trailer := uint32(startSequence)
	if p.trailer != 0 {
		trailer = p.trailer
	}
	w.write(trailer, 22)

	return w.bytes()
}

func encodeMacroblock(w *bitWriter, mb *testMacroblock) {
	desc := uint32(0x80)
	for i := range mb {
		if len(mb[i].ac) > 0 {
			desc |= 1 << i
		}
	}

	w.write(0, 1)
	w.write(desc, 8)

	for i := range mb {
		encodeBlock(w, &mb[i])
	}
}

func encodeBlock(w *bitWriter, b *testBlock) {
	w.write(uint32(b.dc), 10)

	if len(b.ac) == 0 {
		return
	}

	for _, p := range b.ac {
		w.writeRun(p.run)
		w.writeLevel(p.level)
	}
	w.writeEOB()
}

// grayPicture returns a picture of cols x rows macroblocks whose blocks only carry dc.
func grayPicture(cols, rows, dc int) *testPicture {
	p := &testPicture{format: FormatVGA, resolution: 1, number: 1}

	for r := 0; r < rows; r++ {
		row := make([]testMacroblock, cols)
		for c := range row {
			for b := range row[c] {
				row[c][b].dc = dc
			}
		}
		p.rows = append(p.rows, row)
	}

	return p
}

// testDecoder returns a decoder whose VGA format is width x height at resolution 1.
func testDecoder(width, height int) *Decoder {
	d := NewDecoder()

	err := d.SetFormat(FormatVGA, width, height)
	if err != nil {
		panic(err)
	}

	return d
}
