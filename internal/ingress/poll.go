package ingress

import (
	"context"

	"golang.org/x/sys/unix"
)

// poll blocks for up to pollTimeout waiting for any connection's fd to
// become readable, returning a per-connection readiness slice. It returns
// early (all-false) on ctx cancellation without calling the syscall.
func (s *Server) poll(ctx context.Context) ([]bool, error) {
	select {
	case <-ctx.Done():
		return make([]bool, len(s.conns)), ctx.Err()
	default:
	}

	fds := make([]unix.PollFd, len(s.conns))
	for i, c := range s.conns {
		fds[i] = unix.PollFd{Fd: int32(c.FD()), Events: unix.POLLIN}
	}

	for {
		n, err := unix.Poll(fds, int(pollTimeout.Milliseconds()))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, err
		}

		readable := make([]bool, len(fds))
		if n > 0 {
			for i, pfd := range fds {
				readable[i] = pfd.Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0
			}
		}
		return readable, nil
	}
}
