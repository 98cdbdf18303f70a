package uvlc

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Network defaults of the vehicle.
const (
	DefaultVideoPort  = 5555
	DefaultDevicePort = 5550

	DefaultDroneAddr      = "192.168.1.1:5555"
	DefaultMulticastGroup = "224.1.1.1"

	// DefaultWakeup is the number of packets between two init messages.
	DefaultWakeup = 100
)

// Init messages that start and keep alive the video stream.
var (
	initUnicast   = []byte{0x01, 0x00, 0x00, 0x00}
	initMulticast = []byte{0x02, 0x00, 0x00, 0x00}
)

// ErrClosed is returned by operations on a closed receiver or device.
var ErrClosed = errors.New("uvlc: use of closed connection")

// Receiver receives video datagrams from the vehicle over UDP.
type Receiver struct {
	conn  *net.UDPConn
	drone *net.UDPAddr
	init  []byte

	wakeup  int
	timeout time.Duration

	buf   []byte
	count int
	seq   uint32
	start time.Time
}

// Listen binds local (e.g. ":5555") and asks the vehicle at drone to send video there.
func Listen(local, drone string) (*Receiver, error) {
	laddr, err := net.ResolveUDPAddr("udp4", local)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", local, err)
	}

	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, err
	}

	return newReceiver(conn, drone, initUnicast)
}

// ListenMulticast joins group on the video port and asks the vehicle at drone to multicast video.
// An empty group means DefaultMulticastGroup.
func ListenMulticast(group, drone string) (*Receiver, error) {
	if group == "" {
		group = DefaultMulticastGroup
	}

	gaddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(group, fmt.Sprint(DefaultVideoPort)))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", group, err)
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, gaddr)
	if err != nil {
		return nil, err
	}

	return newReceiver(conn, drone, initMulticast)
}

func newReceiver(conn *net.UDPConn, drone string, init []byte) (*Receiver, error) {
	daddr, err := net.ResolveUDPAddr("udp4", drone)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("resolve %s: %w", drone, err)
	}

	r := &Receiver{
		conn:   conn,
		drone:  daddr,
		init:   init,
		wakeup: DefaultWakeup,
		buf:    make([]byte, MaxPacketSize),
	}

	// The vehicle may miss the first datagrams
	for i := 0; i < 3; i++ {
		err = r.Wakeup()
		if err != nil {
			conn.Close()
			return nil, err
		}
	}

	return r, nil
}

// LocalAddr returns the bound address.
func (r *Receiver) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

// SetWakeup sets the number of packets between two init messages. Zero disables re-sending.
func (r *Receiver) SetWakeup(packets int) {
	if packets < 0 {
		packets = 0
	}
	r.wakeup = packets
}

// SetReadTimeout sets how long ReadPacket waits for a datagram. Zero waits forever.
func (r *Receiver) SetReadTimeout(timeout time.Duration) {
	r.timeout = timeout
}

// Wakeup sends the init message to the vehicle.
func (r *Receiver) Wakeup() error {
	_, err := r.conn.WriteToUDP(r.init, r.drone)
	if err != nil {
		return fmt.Errorf("wakeup %s: %w", r.drone, err)
	}

	return nil
}

// ReadPacket waits for the next datagram.
// Time is measured from the first packet received.
// If re-sending the init message fails, the packet is returned along with the error.
func (r *Receiver) ReadPacket() (*Packet, error) {
	if r.timeout > 0 {
		err := r.conn.SetReadDeadline(time.Now().Add(r.timeout))
		if err != nil {
			return nil, err
		}
	} else {
		err := r.conn.SetReadDeadline(time.Time{})
		if err != nil {
			return nil, err
		}
	}

	n, _, err := r.conn.ReadFromUDP(r.buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}

	now := time.Now()
	if r.seq == 0 {
		r.start = now
	}

	p := &Packet{
		Sequence: r.seq,
		Time:     now.Sub(r.start),
		Data:     make([]byte, n),
	}
	copy(p.Data, r.buf[:n])

	r.seq++
	r.count++

	if r.wakeup > 0 && r.count >= r.wakeup {
		r.count = 0
		err = r.Wakeup()
		if err != nil {
			return p, err
		}
	}

	return p, nil
}

// Close closes the connection. A blocked ReadPacket returns ErrClosed.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
