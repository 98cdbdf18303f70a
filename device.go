package uvlc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Test device defaults.
const (
	DefaultInterval = 100 * time.Millisecond
	DefaultTimeout  = 500
)

// Device emulates the vehicle's video server: it waits for an init message
// and then streams packets from a source to whoever sent it.
type Device struct {
	conn *net.UDPConn
	src  PacketSource

	interval time.Duration
	timeout  int

	inits chan *net.UDPAddr
	sent  atomic.Int64

	closed    chan struct{}
	closeOnce sync.Once
}

// NewDevice binds addr (e.g. ":5550") and serves packets read from src.
// If src implements Rewinder it is replayed in a loop.
func NewDevice(addr string, src PacketSource) (*Device, error) {
	laddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, err
	}

	d := &Device{
		conn:     conn,
		src:      src,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		inits:    make(chan *net.UDPAddr, 16),
		closed:   make(chan struct{}),
	}

	go d.readInits()

	return d, nil
}

// Addr returns the bound address.
func (d *Device) Addr() net.Addr {
	return d.conn.LocalAddr()
}

// SetInterval sets the delay between two packets.
func (d *Device) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	d.interval = interval
}

// SetTimeout sets how many packets are sent after the last init message.
func (d *Device) SetTimeout(packets int) {
	d.timeout = packets
}

// Sent returns the number of packets sent.
func (d *Device) Sent() int {
	return int(d.sent.Load())
}

// Serve blocks until a receiver sends an init message, then streams to it until the
// receiver stops sending init messages or the source ends. It returns ErrClosed
// once Close is called.
func (d *Device) Serve() error {
	var peer *net.UDPAddr

	select {
	case <-d.closed:
		return ErrClosed
	case peer = <-d.inits:
	}

	countdown := d.timeout

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.closed:
			return ErrClosed
		case <-d.inits:
			countdown = d.timeout
			continue
		case <-ticker.C:
		}

		p, err := d.nextPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		_, err = d.conn.WriteToUDP(p.Data, peer)
		if err != nil {
			if d.isClosed() {
				return ErrClosed
			}
			return err
		}
		d.sent.Add(1)

		countdown--
		if countdown <= 0 {
			return nil
		}
	}
}

// Close stops Serve and releases the socket.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)
		err = d.conn.Close()
	})

	return err
}

func (d *Device) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

func (d *Device) readInits() {
	buf := make([]byte, 64)

	for {
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			if d.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		if !isInit(buf[:n]) {
			continue
		}

		select {
		case d.inits <- addr:
		default:
		}
	}
}

func (d *Device) nextPacket() (*Packet, error) {
	p, err := d.src.ReadPacket()
	if !errors.Is(err, io.EOF) {
		return p, err
	}

	rw, ok := d.src.(Rewinder)
	if !ok {
		return nil, io.EOF
	}

	err = rw.Rewind()
	if err != nil {
		return nil, err
	}

	return d.src.ReadPacket()
}

func isInit(b []byte) bool {
	if len(b) != len(initUnicast) {
		return false
	}

	return (b[0] == initUnicast[0] || b[0] == initMulticast[0]) && b[1] == 0 && b[2] == 0 && b[3] == 0
}
