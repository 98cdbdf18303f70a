// Package uvlc implements the UVLC video decoder used by the AR.Drone video stream.
//
// Every UVLC picture is intra coded and arrives in a single UDP datagram, so a
// payload can be decoded on its own with Decode. Decoded frames are packed RGB,
// 3 bytes per pixel; RGBA() converts them for image encoders and displays.
//
// A high-level Stream combines a packet source with a Decoder. Packet sources are
// a live Receiver, a recorded Capture, or anything implementing PacketSource.
// With the Stream you have two options to decode video:
//
// 1. Decode() and just hand over the delta time since the last call.
// It replays packets up to the new time, paced by their timestamps, and calls your
// callback (specified through SetVideoCallback()) any number of times.
//
// 2. Use DecodeVideo() to decode exactly one frame at a time. Corrupt pictures are
// skipped; with a live Receiver this blocks until a good frame arrives.
//
// The CaptureWriter records packets into a compressed capture file, and Device
// replays a capture over UDP the way the vehicle does, for testing receivers without one.
package uvlc

import (
	"errors"
	"io"
	"time"
)

// VideoFunc callback function.
type VideoFunc func(s *Stream, frame *Frame)

// ErrorFunc callback function. It is called for every packet that could not be
// decoded, and for source errors with a nil packet.
type ErrorFunc func(s *Stream, packet *Packet, err error)

// Stats holds decoding statistics of a Stream.
type Stats struct {
	// Frames is the number of frames delivered.
	Frames int
	// Dropped is the number of packets that did not decode.
	Dropped int
	// Suspect is the number of frames with a bad trailer, delivered or not.
	Suspect int

	// DecodeTime is the total time spent decoding.
	DecodeTime time.Duration
	// Duration is the packet time span of the delivered frames.
	Duration time.Duration
}

// AverageDecodeTime returns the mean decode time per frame.
func (s Stats) AverageDecodeTime() time.Duration {
	if s.Frames == 0 {
		return 0
	}

	return s.DecodeTime / time.Duration(s.Frames)
}

// FPS returns delivered frames per second of stream time.
func (s Stats) FPS() float64 {
	if s.Duration <= 0 {
		return 0
	}

	return float64(s.Frames) / s.Duration.Seconds()
}

// Stream is high-level interface implementation.
type Stream struct {
	src     PacketSource
	decoder *Decoder
	time    time.Duration

	loop        bool
	hasEnded    bool
	keepSuspect bool

	pending *Packet
	first   *Packet
	last    time.Duration
	err     error

	stats Stats

	done chan bool

	videoCallback VideoFunc
	errorCallback ErrorFunc
}

// New creates a new Stream reading from src with the default format table.
func New(src PacketSource) *Stream {
	return &Stream{
		src:         src,
		decoder:     NewDecoder(),
		keepSuspect: true,
		done:        make(chan bool, 1),
	}
}

// Decoder returns the decoder, e.g. to change its format table.
func (s *Stream) Decoder() *Decoder {
	return s.decoder
}

// Done returns done channel.
func (s *Stream) Done() chan bool {
	return s.done
}

// SetVideoCallback sets a video callback.
func (s *Stream) SetVideoCallback(callback VideoFunc) {
	s.videoCallback = callback
}

// SetErrorCallback sets an error callback.
func (s *Stream) SetErrorCallback(callback ErrorFunc) {
	s.errorCallback = callback
}

// KeepSuspect returns whether frames with a bad trailer are delivered.
func (s *Stream) KeepSuspect() bool {
	return s.keepSuspect
}

// SetKeepSuspect sets whether frames with a bad trailer are delivered. Default true.
func (s *Stream) SetKeepSuspect(keep bool) {
	s.keepSuspect = keep
}

// Loop returns looping.
func (s *Stream) Loop() bool {
	return s.loop
}

// SetLoop sets looping. Looping needs a source that implements Rewinder.
func (s *Stream) SetLoop(loop bool) {
	s.loop = loop
}

// HasEnded checks whether the source has ended.
// If looping is enabled, this will always return false.
func (s *Stream) HasEnded() bool {
	return s.hasEnded
}

// Err returns the last source error other than io.EOF and ErrClosed.
func (s *Stream) Err() error {
	return s.err
}

// Time returns the current internal time.
func (s *Stream) Time() time.Duration {
	return s.time
}

// Stats returns decoding statistics.
func (s *Stream) Stats() Stats {
	return s.stats
}

// Rewind rewinds the source back to the beginning. The source must implement Rewinder.
func (s *Stream) Rewind() error {
	rw, ok := s.src.(Rewinder)
	if !ok {
		return errors.New("uvlc: source is not rewindable")
	}

	err := rw.Rewind()
	if err != nil {
		return err
	}

	s.pending = nil
	s.first = nil
	s.last = 0
	s.time = 0
	s.hasEnded = false

	return nil
}

// Decode advances the internal timer by tick and decodes every packet up to this time.
// This will call the video callback any number of times.
// A frame-skip is not implemented, i.e. everything up to current time will be decoded.
func (s *Stream) Decode(tick time.Duration) {
	if s.hasEnded {
		return
	}

	target := s.time + tick

	for {
		p := s.peekPacket()
		if p == nil {
			if s.err == nil {
				s.handleEnd()
			}
			return
		}

		if p.Time-s.first.Time > target {
			break
		}
		s.pending = nil

		frame := s.decodePacket(p)
		if frame != nil && s.videoCallback != nil {
			s.videoCallback(s, frame)
		}
	}

	s.time = target
}

// DecodeVideo decodes and returns one video frame. Packets that do not decode are skipped.
// Returns nil if the source ended or failed.
func (s *Stream) DecodeVideo() *Frame {
	if s.hasEnded {
		return nil
	}

	rewound := false
	for {
		p := s.peekPacket()
		if p == nil {
			if s.err != nil {
				return nil
			}

			// Nothing decodable in a whole pass
			if rewound {
				s.end()
				return nil
			}

			s.handleEnd()
			if s.hasEnded {
				return nil
			}
			rewound = true

			continue
		}
		s.pending = nil

		frame := s.decodePacket(p)
		if frame != nil {
			s.time = frame.Time
			return frame
		}
	}
}

func (s *Stream) peekPacket() *Packet {
	if s.pending != nil {
		return s.pending
	}

	p, err := s.src.ReadPacket()
	if err != nil && p != nil {
		// The packet is good, the source only reports a side failure
		if s.errorCallback != nil {
			s.errorCallback(s, nil, err)
		}
		err = nil
	}

	if err != nil {
		s.err = nil
		if !errors.Is(err, io.EOF) && !errors.Is(err, ErrClosed) {
			s.err = err
			if s.errorCallback != nil {
				s.errorCallback(s, nil, err)
			}
		}
		return nil
	}

	s.err = nil
	if s.first == nil {
		s.first = p
	}
	s.pending = p

	return p
}

func (s *Stream) decodePacket(p *Packet) *Frame {
	frame, err := s.decoder.Decode(p.Data)
	if frame != nil && frame.Suspect {
		s.stats.Suspect++
		if !s.keepSuspect {
			frame = nil
		}
	}

	if err != nil && s.errorCallback != nil {
		s.errorCallback(s, p, err)
	}

	if frame == nil {
		s.stats.Dropped++
		return nil
	}

	frame.Time = p.Time - s.first.Time

	s.stats.Frames++
	s.stats.DecodeTime += frame.Elapsed
	if frame.Time > s.last {
		s.stats.Duration += frame.Time - s.last
	}
	s.last = frame.Time

	return frame
}

func (s *Stream) handleEnd() {
	if s.loop && s.Rewind() == nil {
		return
	}

	s.end()
}

func (s *Stream) end() {
	s.hasEnded = true
	select {
	case s.done <- true:
	default:
	}
}
