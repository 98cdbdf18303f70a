package uvlc

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"
	"unsafe"
)

// Decode errors. Every error returned by Decode wraps at least one of these.
var (
	// ErrTruncatedInput is returned when the payload ends before the picture does.
	ErrTruncatedInput = errors.New("uvlc: truncated input")
	// ErrInvalidHeader is returned for a bad picture start code, format or resolution.
	ErrInvalidHeader = errors.New("uvlc: invalid picture header")
	// ErrUnsupportedMacroblock is returned for macroblocks that are not intra coded.
	ErrUnsupportedMacroblock = errors.New("uvlc: unsupported macroblock")
	// ErrInvalidDescriptor is returned when the macroblock descriptor lacks its marker bit.
	ErrInvalidDescriptor = errors.New("uvlc: invalid macroblock descriptor")
	// ErrBadSliceMarker is returned when a slice does not begin with a slice start code.
	ErrBadSliceMarker = errors.New("uvlc: bad slice marker")
	// ErrBadTrailer is returned when the picture does not end with the end of sequence code.
	// The frame returned alongside it is complete and marked Suspect.
	ErrBadTrailer = errors.New("uvlc: bad picture trailer")
	// ErrTruncatedBlock is returned when a block has no end of block code within 64 coefficients.
	ErrTruncatedBlock = errors.New("uvlc: truncated block")
)

// Picture formats.
const (
	FormatCIF = 1
	FormatVGA = 2
)

const (
	startPicture  = 0x20
	startSequence = 0x3f

	// startSliceMask covers the bits that must be clear in a slice start code.
	startSliceMask = 0x3fffc0

	// Smallest macroblock: coded flag, descriptor and six DC terms.
	minMacroblockBits = 1 + 8 + 6*10
)

// MaxDimension is the largest picture width or height the decoder accepts.
const MaxDimension = 2048

// ErrInvalidFormat is returned by SetFormat for an unknown format or an unusable size.
var ErrInvalidFormat = errors.New("uvlc: invalid format")

// FrameHeader holds the picture header fields.
type FrameHeader struct {
	Format     int
	Resolution int
	Type       int
	Quant      int
	Number     uint32
}

// Frame represents decoded video frame.
type Frame struct {
	Width  int
	Height int

	// Pix holds RGB samples, 3 bytes per pixel, row by row.
	Pix []byte

	// Time is the packet time relative to the first packet, set by Stream.
	Time time.Duration

	// Elapsed is the time spent decoding.
	Elapsed time.Duration

	Header FrameHeader

	// Suspect is set when the picture trailer did not validate.
	Suspect bool
}

// RGBA returns frame as image.RGBA.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))

	s := f.Pix
	d := img.Pix
	for si, di := 0, 0; si+2 < len(s); si, di = si+3, di+4 {
		d[di+0] = s[si+0]
		d[di+1] = s[si+1]
		d[di+2] = s[si+2]
		d[di+3] = 0xff
	}

	return img
}

// Pixels returns frame as slice of color.RGBA.
func (f *Frame) Pixels() []color.RGBA {
	img := f.RGBA()
	if len(img.Pix) == 0 {
		return nil
	}

	return unsafe.Slice((*color.RGBA)(unsafe.Pointer(&img.Pix[0])), len(img.Pix)/4)
}

type resolution struct {
	width  int
	height int
}

// Decoder decodes UVLC video payloads into RGB frames.
//
// A Decoder holds configuration only. Once configured it can be used from
// multiple goroutines; every Decode call owns its reader and raster.
type Decoder struct {
	formats [4]resolution
}

// NewDecoder creates a decoder with the default format table.
func NewDecoder() *Decoder {
	d := &Decoder{}
	d.formats[FormatCIF] = resolution{88, 72}
	d.formats[FormatVGA] = resolution{160, 120}
	d.formats[3] = resolution{160, 120}

	return d
}

// SetFormat sets the base resolution of a picture format (1--3). The header's
// resolution field doubles it resolution-1 times.
// Sizes must be positive and no larger than MaxDimension.
func (d *Decoder) SetFormat(format, width, height int) error {
	if format <= 0 || format >= len(d.formats) {
		return fmt.Errorf("%w: format %d", ErrInvalidFormat, format)
	}

	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidFormat, width, height)
	}

	d.formats[format] = resolution{width, height}

	return nil
}

// Format returns the base resolution of a picture format.
func (d *Decoder) Format(format int) (width, height int) {
	if format <= 0 || format >= len(d.formats) {
		return 0, 0
	}

	return d.formats[format].width, d.formats[format].height
}

var defaultDecoder = NewDecoder()

// Decode decodes one video payload with the default format table.
func Decode(data []byte) (*Frame, error) {
	return defaultDecoder.Decode(data)
}

// Decode decodes one video payload, exactly as received in a single datagram.
//
// On ErrBadTrailer the fully decoded frame is returned too, with Suspect set.
// Any other error discards the frame.
func (d *Decoder) Decode(data []byte) (*Frame, error) {
	start := time.Now()

	v := &video{buf: newBitReader(data)}

	err := v.decodeHeader(&d.formats)
	if err != nil {
		return nil, err
	}

	err = v.decodeSlices()
	if err != nil {
		return nil, err
	}

	frame := &Frame{
		Width:  v.width,
		Height: v.height,
		Pix:    v.pix,
		Header: v.header,
	}

	err = v.decodeTrailer()
	if err != nil {
		if !errors.Is(err, ErrBadTrailer) {
			return nil, err
		}
		frame.Suspect = true
	}

	frame.Elapsed = time.Since(start)

	return frame, err
}

// video holds the state of a single Decode call.
type video struct {
	buf *bitReader

	header FrameHeader

	width  int
	height int
	mbCols int
	mbRows int

	// Slice start code 0x3f seen in place of a slice marker.
	hasEnded bool

	pix []byte

	luma   [4][64]int
	chroma [2][64]int
}

func (v *video) decodeHeader(formats *[4]resolution) error {
	v.buf.align()

	code := v.buf.read(22)
	v.header.Format = v.buf.read(2)
	v.header.Resolution = v.buf.read(3)
	v.header.Type = v.buf.read(3)
	v.header.Quant = v.buf.read(5)
	v.header.Number = uint32(v.buf.read(32))

	if v.buf.hasEnded() {
		return fmt.Errorf("%w: picture header", ErrTruncatedInput)
	}

	if code != startPicture {
		return fmt.Errorf("%w: start code %#06x", ErrInvalidHeader, code)
	}

	if v.header.Format == 0 {
		return fmt.Errorf("%w: format 0", ErrInvalidHeader)
	}

	if v.header.Resolution == 0 {
		return fmt.Errorf("%w: resolution 0", ErrInvalidHeader)
	}

	base := formats[v.header.Format]
	v.width = base.width << (v.header.Resolution - 1)
	v.height = base.height << (v.header.Resolution - 1)

	if v.width <= 0 || v.height <= 0 || v.width&15 != 0 || v.height&15 != 0 {
		return fmt.Errorf("%w: %dx%d is not a multiple of 16", ErrInvalidHeader, v.width, v.height)
	}

	if v.width > MaxDimension || v.height > MaxDimension {
		return fmt.Errorf("%w: %dx%d is larger than %d", ErrInvalidHeader, v.width, v.height, MaxDimension)
	}

	v.mbCols = v.width >> 4
	v.mbRows = v.height >> 4

	// Any picture carries at least its first slice, later ones may be cut by an end code
	if v.mbCols > v.buf.Remaining()/minMacroblockBits {
		return fmt.Errorf("%w: %d bits left for %dx%d picture", ErrTruncatedInput, v.buf.Remaining(), v.width, v.height)
	}

	v.pix = make([]byte, v.width*v.height*3)

	return nil
}

func (v *video) decodeSlices() error {
	for slice := 0; slice < v.mbRows; slice++ {
		err := v.decodeSlice(slice)
		if err != nil {
			return err
		}

		if v.hasEnded {
			break
		}
	}

	return nil
}

func (v *video) decodeTrailer() error {
	if v.hasEnded {
		return nil
	}

	v.buf.align()
	code := v.buf.read(22)

	if v.buf.hasEnded() {
		return fmt.Errorf("%w: %w: picture trailer", ErrBadTrailer, ErrTruncatedInput)
	}

	if code != startSequence {
		return fmt.Errorf("%w: end code %#06x", ErrBadTrailer, code)
	}

	return nil
}

func (v *video) decodeSlice(slice int) error {
	// The first slice has no start code
	if slice > 0 {
		v.buf.align()
		code := v.buf.read(22)

		if v.buf.hasEnded() {
			return fmt.Errorf("%w: slice %d start code", ErrTruncatedInput, slice)
		}

		if code == startSequence {
			v.hasEnded = true
			return nil
		}

		if code&startPicture == 0 || code&startSliceMask != 0 {
			return fmt.Errorf("%w: slice %d start code %#06x", ErrBadSliceMarker, slice, code)
		}

		v.buf.skip(5) // skip quant
	}

	for col := 0; col < v.mbCols; col++ {
		err := v.decodeMacroblock(slice, col)
		if err != nil {
			return fmt.Errorf("slice %d macroblock %d: %w", slice, col, err)
		}
	}

	return nil
}

func (v *video) decodeMacroblock(row, col int) error {
	if v.buf.read1() != 0 {
		return ErrUnsupportedMacroblock
	}

	desc := v.buf.read(8)
	if v.buf.hasEnded() {
		return ErrTruncatedInput
	}

	if desc&0x80 == 0 {
		return fmt.Errorf("%w: %#02x", ErrInvalidDescriptor, desc)
	}

	if desc&0x40 != 0 {
		v.buf.skip(2) // skip diff
	}

	for block := 0; block < 4; block++ {
		err := v.decodeBlock(&v.luma[block], desc&(1<<block) != 0)
		if err != nil {
			return fmt.Errorf("block %d: %w", block, err)
		}
		idct(&v.luma[block])
	}

	for block := 0; block < 2; block++ {
		err := v.decodeBlock(&v.chroma[block], desc&(1<<(block+4)) != 0)
		if err != nil {
			return fmt.Errorf("block %d: %w", block+4, err)
		}
		idct(&v.chroma[block])
	}

	v.copyMacroblockToDest(row, col)

	return nil
}

// decodeBlock reads the DC term and, if hasAC, the run/level coded AC terms of one block.
//
// Codes are decoded from a 64-bit window of the stream; the reader is only
// advanced once the window is used up or the block ends.
func (v *video) decodeBlock(block *[64]int, hasAC bool) error {
	*block = [64]int{}
	block[0] = v.buf.read(10) * int(videoInverseQuant[0])

	if !hasAC {
		if v.buf.hasEnded() {
			return fmt.Errorf("%w: %w", ErrTruncatedBlock, ErrTruncatedInput)
		}
		return nil
	}

	n := 1
	for {
		window := v.buf.window()
		used := 0

		for used <= 64-maxPairBits {
			run := videoRunTable[window<<used>>(64-runBits)]
			if run.Length == 0 {
				return v.invalidCode("run", used, runBits)
			}
			used += int(run.Length)
			n += int(run.Run)

			level := videoLevelTable[window<<used>>(64-levelBits)]
			if level.Length == 0 {
				return v.invalidCode("level", used, levelBits)
			}
			used += int(level.Length)

			if level.EOB {
				v.buf.skip(used)
				if v.buf.hasEnded() {
					return fmt.Errorf("%w: %w", ErrTruncatedBlock, ErrTruncatedInput)
				}
				return nil
			}

			if n >= 64 {
				return fmt.Errorf("%w: coefficient %d", ErrTruncatedBlock, n)
			}

			deZigZagged := videoZigZag[n]
			block[deZigZagged] = int(level.Value) * int(videoInverseQuant[deZigZagged])
			n++
		}

		v.buf.skip(used)
		if v.buf.hasEnded() {
			return fmt.Errorf("%w: %w", ErrTruncatedBlock, ErrTruncatedInput)
		}
	}
}

// invalidCode reports a code that matches no table entry. Codes that reach
// into the zero padding past the payload mean the block was cut short.
func (v *video) invalidCode(kind string, used, width int) error {
	if v.buf.bitIndex+used+width > v.buf.Size() {
		return fmt.Errorf("%w: %w: %s code past end", ErrTruncatedBlock, ErrTruncatedInput, kind)
	}

	return fmt.Errorf("%w: invalid %s code", ErrTruncatedBlock, kind)
}

// copyMacroblockToDest converts the decoded blocks to RGB and writes them at
// macroblock row, col.
func (v *video) copyMacroblockToDest(row, col int) {
	stride := v.width * 3
	base := (row<<4)*stride + (col<<4)*3

	cb := &v.chroma[0]
	cr := &v.chroma[1]

	for i := 0; i < 256; i++ {
		j := videoChromaUpsample[i]

		y := v.luma[i>>6][i&63] - 16
		b := cb[j] - 128
		r := cr[j] - 128

		pos := int(videoPixelPosition[i])
		di := base + (pos>>4)*stride + (pos&15)*3

		v.pix[di+0] = clamp((298*y + 409*r + 128) >> 8)
		v.pix[di+1] = clamp((298*y - 100*b - 208*r + 128) >> 8)
		v.pix[di+2] = clamp((298*y + 516*b + 128) >> 8)
	}
}

func clamp(n int) byte {
	if n > 255 {
		n = 255
	} else if n < 0 {
		n = 0
	}

	return byte(n)
}
