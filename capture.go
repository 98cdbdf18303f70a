package uvlc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

var (
	// MaxPacketSize is the largest payload a capture record or datagram may carry.
	MaxPacketSize = 65535
)

// ErrInvalidCapture is the error returned when a capture file is malformed.
var ErrInvalidCapture = errors.New("uvlc: invalid capture")

// Packet is one video datagram.
// Time is the arrival time relative to the first packet of the source.
type Packet struct {
	Sequence uint32
	Time     time.Duration
	Data     []byte
}

// PacketSource provides video packets. ReadPacket returns io.EOF when the source is exhausted.
// A packet returned together with an error is still valid.
type PacketSource interface {
	ReadPacket() (*Packet, error)
}

// Rewinder is implemented by packet sources that can restart from the first packet.
type Rewinder interface {
	Rewind() error
}

var captureMagic = [5]byte{'U', 'V', 'L', 'C', 1}

const captureRecordSize = 4 + 8 + 4

// CaptureWriter records packets into a zstd compressed capture.
type CaptureWriter struct {
	enc *zstd.Encoder
	hdr [captureRecordSize]byte
}

// NewCaptureWriter creates a capture writer. Close must be called to flush the capture.
func NewCaptureWriter(w io.Writer) (*CaptureWriter, error) {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}

	_, err = enc.Write(captureMagic[:])
	if err != nil {
		return nil, err
	}

	return &CaptureWriter{enc: enc}, nil
}

// WritePacket appends a packet to the capture.
func (c *CaptureWriter) WritePacket(p *Packet) error {
	if len(p.Data) > MaxPacketSize {
		return fmt.Errorf("%w: packet of %d bytes", ErrInvalidCapture, len(p.Data))
	}

	binary.LittleEndian.PutUint32(c.hdr[0:], p.Sequence)
	binary.LittleEndian.PutUint64(c.hdr[4:], uint64(p.Time))
	binary.LittleEndian.PutUint32(c.hdr[12:], uint32(len(p.Data)))

	_, err := c.enc.Write(c.hdr[:])
	if err != nil {
		return err
	}

	_, err = c.enc.Write(p.Data)

	return err
}

// Flush writes buffered packets to the underlying writer.
func (c *CaptureWriter) Flush() error {
	return c.enc.Flush()
}

// Close flushes and finishes the capture. It does not close the underlying writer.
func (c *CaptureWriter) Close() error {
	return c.enc.Close()
}

// Capture reads packets recorded with CaptureWriter.
type Capture struct {
	reader    io.Reader
	dec       *zstd.Decoder
	start     int64
	totalSize int

	hdr [captureRecordSize]byte

	hasEnded bool
}

// NewCapture creates a capture reader starting at the current position of r.
// If r is an io.Seeker, the capture can be rewound to that position.
func NewCapture(r io.Reader) (*Capture, error) {
	c := &Capture{}

	seeker, ok := r.(io.Seeker)
	if ok {
		cur, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		off, err := seeker.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, err
		}
		c.start = cur
		c.totalSize = int(off - cur)
		_, err = seeker.Seek(cur, io.SeekStart)
		if err != nil {
			return nil, err
		}
	}

	dec, err := zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}

	c.reader = r
	c.dec = dec

	err = c.readMagic()
	if err != nil {
		dec.Close()
		return nil, err
	}

	return c, nil
}

// Seekable returns true if reader is seekable.
func (c *Capture) Seekable() bool {
	return c.totalSize > 0
}

// Size returns the compressed size of a seekable capture, counted from where it starts, 0 otherwise.
func (c *Capture) Size() int {
	return c.totalSize
}

// HasEnded checks whether all packets were read. This will be cleared on rewind.
func (c *Capture) HasEnded() bool {
	return c.hasEnded
}

// ReadPacket reads the next packet. It returns io.EOF after the last packet.
func (c *Capture) ReadPacket() (*Packet, error) {
	_, err := io.ReadFull(c.dec, c.hdr[:])
	if err != nil {
		if err == io.EOF {
			c.hasEnded = true
		}
		return nil, err
	}

	p := &Packet{}
	p.Sequence = binary.LittleEndian.Uint32(c.hdr[0:])
	p.Time = time.Duration(binary.LittleEndian.Uint64(c.hdr[4:]))

	size := int(binary.LittleEndian.Uint32(c.hdr[12:]))
	if size > MaxPacketSize {
		return nil, fmt.Errorf("%w: record %d of %d bytes", ErrInvalidCapture, p.Sequence, size)
	}

	p.Data = make([]byte, size)
	_, err = io.ReadFull(c.dec, p.Data)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return p, nil
}

// Rewind rewinds the capture back to the first packet. The underlying reader must be seekable.
func (c *Capture) Rewind() error {
	seeker, ok := c.reader.(io.Seeker)
	if !ok {
		return fmt.Errorf("%w: not seekable", ErrInvalidCapture)
	}

	_, err := seeker.Seek(c.start, io.SeekStart)
	if err != nil {
		return err
	}

	err = c.dec.Reset(c.reader)
	if err != nil {
		return err
	}

	c.hasEnded = false

	return c.readMagic()
}

// Close releases the decoder. It does not close the underlying reader.
func (c *Capture) Close() {
	c.dec.Close()
}

func (c *Capture) readMagic() error {
	var magic [len(captureMagic)]byte

	_, err := io.ReadFull(c.dec, magic[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCapture, err)
	}

	if magic != captureMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidCapture, magic[:])
	}

	return nil
}
