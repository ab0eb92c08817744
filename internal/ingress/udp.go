package ingress

import (
	"fmt"
	"net"

	"github.com/gobwas/glob"
	"golang.org/x/sys/unix"
)

// UDPConnection is a Connection backed by a bound UDP socket. The original's
// app_t subclasses read straight off a raw fd with recvfrom(); here a
// *net.UDPConn is used for setup (bind, address parsing) but the actual recv
// path drops to the raw fd via SyscallConn, so poll() and RecvDatagram agree
// on exactly the same descriptor.
type UDPConnection struct {
	name   string
	conn   *net.UDPConn
	fd     int
	allow  []glob.Glob
	lastSrc net.Addr
}

// UDPConfig configures a UDPConnection.
type UDPConfig struct {
	Name string
	Addr string // e.g. "0.0.0.0:6767"
	// AllowedSources is a list of glob patterns (gobwas/glob syntax)
	// matched against the remote address string ("ip:port") of every
	// received datagram. An empty list allows everything.
	AllowedSources []string
}

// NewUDPConnection binds a UDP socket per cfg.
func NewUDPConnection(cfg UDPConfig) (*UDPConnection, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("ingress: resolve %q: %w", cfg.Addr, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ingress: listen %q: %w", cfg.Addr, err)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ingress: syscall conn: %w", err)
	}

	var fd int
	if ctrlErr := raw.Control(func(fdPtr uintptr) { fd = int(fdPtr) }); ctrlErr != nil {
		conn.Close()
		return nil, fmt.Errorf("ingress: control: %w", ctrlErr)
	}

	allow := make([]glob.Glob, 0, len(cfg.AllowedSources))
	for _, pattern := range cfg.AllowedSources {
		g, err := glob.Compile(pattern)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("ingress: compile allow pattern %q: %w", pattern, err)
		}
		allow = append(allow, g)
	}

	return &UDPConnection{
		name:  cfg.Name,
		conn:  conn,
		fd:    fd,
		allow: allow,
	}, nil
}

func (c *UDPConnection) Name() string { return c.name }
func (c *UDPConnection) FD() int      { return c.fd }

// RecvDatagram performs a single non-blocking recvfrom on the raw fd. It
// returns (0, nil) when nothing is pending, matching the poll-then-recv
// contract the Server relies on.
func (c *UDPConnection) RecvDatagram(buf []byte) (int, error) {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return 0, err
	}

	var n int
	var from unix.Sockaddr
	var recvErr error

	err = raw.Read(func(fdPtr uintptr) bool {
		n, from, recvErr = unix.Recvfrom(int(fdPtr), buf, unix.MSG_DONTWAIT)
		if recvErr == unix.EAGAIN || recvErr == unix.EWOULDBLOCK {
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if recvErr == unix.EAGAIN || recvErr == unix.EWOULDBLOCK {
		return 0, nil
	}
	if recvErr != nil {
		return 0, recvErr
	}

	c.lastSrc = sockaddrToUDPAddr(from)
	return n, nil
}

// FilterIngress checks the most recent datagram's source against the
// configured allow-list.
func (c *UDPConnection) FilterIngress() bool {
	if len(c.allow) == 0 {
		return true
	}
	if c.lastSrc == nil {
		return false
	}
	src := c.lastSrc.String()
	for _, g := range c.allow {
		if g.Match(src) {
			return true
		}
	}
	return false
}

// Close releases the underlying socket.
func (c *UDPConnection) Close() error {
	return c.conn.Close()
}

func sockaddrToUDPAddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: a.Addr[:], Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.UDPAddr{IP: a.Addr[:], Port: a.Port}
	default:
		return nil
	}
}
