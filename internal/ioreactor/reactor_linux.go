//go:build linux

package ioreactor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// fdConn is a non-blocking raw TCP socket driven directly through
// unix.Read/unix.Write.
type fdConn struct {
	id     uint64
	fd     int
	remote string

	closeOnce sync.Once
}

func (c *fdConn) ID() uint64         { return c.id }
func (c *fdConn) RemoteAddr() string { return c.remote }

// Write sends all of b, polling for writability when the non-blocking
// socket's buffer is full so a slow peer cannot corrupt framing with a
// partial write.
func (c *fdConn) Write(b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := unix.Write(c.fd, b[total:])
		if n > 0 {
			total += n
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				pfd := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLOUT}}
				_, _ = unix.Poll(pfd, waitTimeoutMillis)
				continue
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return total, err
		}
	}
	return total, nil
}

func (c *fdConn) Close() error {
	var err error
	c.closeOnce.Do(func() { err = unix.Close(c.fd) })
	return err
}

// epollReactor is the Linux epoll-based implementation of Reactor.
type epollReactor struct {
	listenFD int
	epFD     int
	addr     string
	bufSize  int

	mu      sync.Mutex
	conns   map[int]*fdConn
	handler Handler
	closed  atomic.Bool
	nextID  atomic.Uint64
}

// NewReactor binds addr ("host:port" or ":port") and prepares an epoll
// instance. Serve must be called to actually run the event loop.
func NewReactor(addr string, bufSize int) (Reactor, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	fd, bound, err := listenTCP(addr)
	if err != nil {
		return nil, err
	}
	epFD, err := unix.EpollCreate1(0)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ioreactor: epoll_create1: %w", err)
	}
	if err := unix.EpollCtl(epFD, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}); err != nil {
		_ = unix.Close(fd)
		_ = unix.Close(epFD)
		return nil, fmt.Errorf("ioreactor: epoll_ctl(listen): %w", err)
	}
	return &epollReactor{
		listenFD: fd,
		epFD:     epFD,
		addr:     bound,
		bufSize:  bufSize,
		conns:    make(map[int]*fdConn),
	}, nil
}

// DefaultBufferSize mirrors wire.DefaultBufferSize without importing it
// (ioreactor stays protocol-agnostic); server wires the real constant in.
const DefaultBufferSize = 4096

func listenTCP(addr string) (fd int, bound string, err error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, "", fmt.Errorf("ioreactor: resolve %q: %w", addr, err)
	}
	domain := unix.AF_INET
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err = unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, "", fmt.Errorf("ioreactor: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, "", fmt.Errorf("ioreactor: setsockopt(SO_REUSEADDR): %w", err)
	}
	var sa unix.Sockaddr
	if domain == unix.AF_INET6 {
		var a16 [16]byte
		copy(a16[:], tcpAddr.IP.To16())
		sa = &unix.SockaddrInet6{Port: tcpAddr.Port, Addr: a16}
	} else {
		var a4 [4]byte
		if ip4 := tcpAddr.IP.To4(); ip4 != nil {
			copy(a4[:], ip4)
		}
		sa = &unix.SockaddrInet4{Port: tcpAddr.Port, Addr: a4}
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, "", fmt.Errorf("ioreactor: bind: %w", err)
	}
	if err := unix.Listen(fd, 128); err != nil {
		_ = unix.Close(fd)
		return -1, "", fmt.Errorf("ioreactor: listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, "", fmt.Errorf("ioreactor: set listen nonblocking: %w", err)
	}
	boundSA, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return -1, "", fmt.Errorf("ioreactor: getsockname: %w", err)
	}
	return fd, formatSockaddr(boundSA), nil
}

func formatSockaddr(sa unix.Sockaddr) string {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	default:
		return ""
	}
}

func (r *epollReactor) Addr() string { return r.addr }

// Close tears down the listener, the epoll instance, and every connection
// the reactor still owns, delivering OnClosed for each so the handler's
// bookkeeping stays balanced.
func (r *epollReactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.mu.Lock()
	h := r.handler
	conns := make([]*fdConn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[int]*fdConn)
	r.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
		if h != nil {
			h.OnClosed(c, nil)
		}
	}
	_ = unix.Close(r.listenFD)
	return unix.Close(r.epFD)
}

// Serve runs the epoll wait loop until ctx is cancelled. Peer sockets are
// registered edge-triggered, so each readable event is drained to EAGAIN
// rather than read once; a single read would stall frames still queued in
// the kernel.
func (r *epollReactor) Serve(ctx context.Context, h Handler) error {
	defer r.Close()
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
	events := make([]unix.EpollEvent, 64)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, err := unix.EpollWait(r.epFD, events, waitTimeoutMillis)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if r.closed.Load() {
				return nil
			}
			return fmt.Errorf("ioreactor: epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == r.listenFD {
				r.acceptReady(h)
				continue
			}
			r.peerReady(fd, events[i].Events, h)
		}
	}
}

func (r *epollReactor) acceptReady(h Handler) {
	for {
		connFD, sa, err := unix.Accept4(r.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return
		}
		c := &fdConn{
			id:     r.nextID.Add(1),
			fd:     connFD,
			remote: formatSockaddr(sa),
		}
		if err := h.OnAccept(c); err != nil {
			_ = c.Close()
			continue
		}
		r.mu.Lock()
		r.conns[connFD] = c
		r.mu.Unlock()
		ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(connFD)}
		if err := unix.EpollCtl(r.epFD, unix.EPOLL_CTL_ADD, connFD, &ev); err != nil {
			r.removeConn(connFD, h, err)
		}
	}
}

func (r *epollReactor) peerReady(fd int, events uint32, h Handler) {
	r.mu.Lock()
	c, ok := r.conns[fd]
	r.mu.Unlock()
	if !ok {
		return
	}
	if events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		r.removeConn(fd, h, errors.New("ioreactor: peer hangup"))
		return
	}
	for {
		buf := make([]byte, r.bufSize)
		n, err := unix.Read(fd, buf)
		if n > 0 {
			h.OnReadable(c, buf[:n])
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			r.removeConn(fd, h, err)
			return
		}
		if n == 0 {
			r.removeConn(fd, h, nil)
			return
		}
	}
}

func (r *epollReactor) removeConn(fd int, h Handler, cause error) {
	r.mu.Lock()
	c, ok := r.conns[fd]
	if ok {
		delete(r.conns, fd)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	_ = unix.EpollCtl(r.epFD, unix.EPOLL_CTL_DEL, fd, nil)
	_ = c.Close()
	h.OnClosed(c, cause)
}
