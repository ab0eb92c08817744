package ingress

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

const (
	ifnamsiz    = 16
	tunDevPath  = "/dev/net/tun"
	iffTUN      = 0x0001
	iffNoPI     = 0x1000
	tunSetIFFNr = 0x400454ca // TUNSETIFF on amd64/arm64 little-endian layouts
)

// ifReq mirrors struct ifreq's name+flags prefix, enough for TUNSETIFF.
type ifReq struct {
	Name  [ifnamsiz]byte
	Flags uint16
	_     [22]byte // pad to sizeof(struct ifreq)
}

// TUNConnection is a Connection backed by a Linux TUN interface. The
// original's TUN-backed app_t implementation assumes a single network
// namespace; this adds an optional namespace switch during creation,
// grounded on the rest of the pack's netlink/netns usage for interface
// lifecycle management rather than shelling out to `ip tuntap`.
type TUNConnection struct {
	name string
	file *os.File
	fd   int
	link netlink.Link
}

// TUNConfig configures a TUNConnection.
type TUNConfig struct {
	Name string
	MTU  int
	// Namespace, if non-empty, names a network namespace (as created by
	// `ip netns add`) the interface is moved into after creation.
	Namespace string
}

// NewTUNConnection creates (or attaches to) a TUN interface named cfg.Name,
// brings it administratively up, and optionally moves it into a named
// network namespace.
func NewTUNConnection(cfg TUNConfig) (*TUNConnection, error) {
	f, err := os.OpenFile(tunDevPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("ingress: open %s: %w", tunDevPath, err)
	}

	var req ifReq
	copy(req.Name[:], cfg.Name)
	req.Flags = iffTUN | iffNoPI

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(tunSetIFFNr), uintptr(unsafe.Pointer(&req))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("ingress: TUNSETIFF %s: %w", cfg.Name, errno)
	}

	link, err := netlink.LinkByName(cfg.Name)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ingress: link by name %s: %w", cfg.Name, err)
	}

	if cfg.MTU > 0 {
		if err := netlink.LinkSetMTU(link, cfg.MTU); err != nil {
			f.Close()
			return nil, fmt.Errorf("ingress: set mtu: %w", err)
		}
	}

	if cfg.Namespace != "" {
		ns, err := netns.GetFromName(cfg.Namespace)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("ingress: netns %s: %w", cfg.Namespace, err)
		}
		defer ns.Close()

		if err := netlink.LinkSetNsFd(link, int(ns)); err != nil {
			f.Close()
			return nil, fmt.Errorf("ingress: move %s to netns %s: %w", cfg.Name, cfg.Namespace, err)
		}
	}

	if err := netlink.LinkSetUp(link); err != nil {
		f.Close()
		return nil, fmt.Errorf("ingress: link up %s: %w", cfg.Name, err)
	}

	return &TUNConnection{
		name: cfg.Name,
		file: f,
		fd:   int(f.Fd()),
		link: link,
	}, nil
}

func (c *TUNConnection) Name() string { return c.name }
func (c *TUNConnection) FD() int      { return c.fd }

// RecvDatagram performs a single read of one TUN frame. The descriptor is in
// blocking mode, so the server calls it only after poll reports the
// descriptor readable.
func (c *TUNConnection) RecvDatagram(buf []byte) (int, error) {
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// FilterIngress always accepts: a TUN device only ever delivers frames the
// kernel already routed to this interface.
func (c *TUNConnection) FilterIngress() bool { return true }

// Close releases the TUN file descriptor.
func (c *TUNConnection) Close() error {
	return c.file.Close()
}
