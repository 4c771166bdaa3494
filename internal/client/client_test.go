package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/go-tcpbus/internal/strategy"
	"github.com/kstaniek/go-tcpbus/internal/wire"
)

// fakeServer is a minimal hand-rolled listener standing in for the server
// package in these tests: it accepts one connection at a time, writes the
// mandatory handshake frame, and otherwise lets the test drive the socket
// directly.
type fakeServer struct {
	ln           net.Listener
	strategyCode uint32

	mu     sync.Mutex
	conns  []net.Conn
	accept chan net.Conn
}

func newFakeServer(t *testing.T, code uint32) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fs := &fakeServer{ln: ln, strategyCode: code, accept: make(chan net.Conn, 4)}
	go fs.acceptLoop()
	return fs
}

func (fs *fakeServer) acceptLoop() {
	for {
		conn, err := fs.ln.Accept()
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conns = append(fs.conns, conn)
		fs.mu.Unlock()

		buf := make([]byte, wire.HeaderSize+wire.StrategyBodySize+wire.ChecksumSize)
		n, err := wire.Serialize(buf, wire.SecArgTarget, wire.EncodeStrategyBody(fs.strategyCode), nil)
		if err != nil {
			_ = conn.Close()
			continue
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			_ = conn.Close()
			continue
		}
		fs.accept <- conn
	}
}

func (fs *fakeServer) addr() string { return fs.ln.Addr().String() }

func (fs *fakeServer) closeAll() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, c := range fs.conns {
		_ = c.Close()
	}
}

func (fs *fakeServer) close() {
	_ = fs.ln.Close()
	fs.closeAll()
}

func recordingHandler(mu *sync.Mutex, got *[]string) Handler[*struct{}] {
	return func(mgr *Manager[*struct{}], target wire.Target, body []byte) {
		mu.Lock()
		*got = append(*got, target.String()+":"+string(body))
		mu.Unlock()
	}
}

// TestHandshakeAndSend exercises the baseline client path: dial, consume
// the plaintext handshake, apply the negotiated strategy, and exchange one
// frame in each direction.
func TestHandshakeAndSend(t *testing.T) {
	fs := newFakeServer(t, strategy.CodeXOR)
	defer fs.close()

	var mu sync.Mutex
	var got []string
	mgr := New[*struct{}](fs.addr(), recordingHandler(&mu, &got), &struct{}{},
		WithReconnectDelay[*struct{}](50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mgr.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !mgr.IsConnected() {
		time.Sleep(5 * time.Millisecond)
	}
	if !mgr.IsConnected() {
		t.Fatalf("manager did not report connected in time")
	}

	var serverConn net.Conn
	select {
	case serverConn = <-fs.accept:
	case <-time.After(time.Second):
		t.Fatalf("fake server never accepted a connection")
	}

	pair := strategy.Lookup(strategy.CodeXOR)
	buf := make([]byte, wire.DefaultBufferSize)
	n, err := wire.Serialize(buf, wire.NewTarget("GREET"), []byte("hi"), pair.Encrypt)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if _, err := serverConn.Write(buf[:n]); err != nil {
		t.Fatalf("server write: %v", err)
	}

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "GREET:hi" {
		t.Fatalf("handler observations = %v, want [GREET:hi]", got)
	}

	if _, err := mgr.Send(wire.NewTarget("ACK"), []byte("ok")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = serverConn.SetReadDeadline(time.Now().Add(time.Second))
	hdr := make([]byte, wire.HeaderSize)
	if _, err := readFullHelper(serverConn, hdr); err != nil {
		t.Fatalf("server read ack header: %v", err)
	}
}

func readFullHelper(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// TestReconnectAfterServerDrop confirms that when the underlying
// connection is severed, the manager transitions back to disconnected,
// then reconnects and re-handshakes without any caller intervention.
func TestReconnectAfterServerDrop(t *testing.T) {
	fs := newFakeServer(t, strategy.CodeNone)
	defer fs.close()

	var mu sync.Mutex
	var got []string
	mgr := New[*struct{}](fs.addr(), recordingHandler(&mu, &got), &struct{}{},
		WithReconnectDelay[*struct{}](30*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mgr.Run(ctx) }()

	var firstConn net.Conn
	select {
	case firstConn = <-fs.accept:
	case <-time.After(2 * time.Second):
		t.Fatalf("fake server never accepted the first connection")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !mgr.IsConnected() {
		time.Sleep(5 * time.Millisecond)
	}
	if !mgr.IsConnected() {
		t.Fatalf("manager did not connect the first time")
	}

	// Sever the connection from the server side; the manager's recvLoop
	// should observe the failure, reset, and redial.
	_ = firstConn.Close()

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && mgr.IsConnected() {
		time.Sleep(5 * time.Millisecond)
	}
	if mgr.IsConnected() {
		t.Fatalf("manager still reports connected after the peer closed")
	}

	var secondConn net.Conn
	select {
	case secondConn = <-fs.accept:
	case <-time.After(2 * time.Second):
		t.Fatalf("manager never reconnected")
	}
	defer secondConn.Close()

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !mgr.IsConnected() {
		time.Sleep(5 * time.Millisecond)
	}
	if !mgr.IsConnected() {
		t.Fatalf("manager did not report connected after reconnecting")
	}

	if _, err := mgr.Send(wire.NewTarget("PING"), []byte("x")); err != nil {
		t.Fatalf("Send after reconnect: %v", err)
	}
}

// TestCloseUnblocksRun confirms Close terminates a blocked Run promptly by
// closing the active connection, without requiring ctx cancellation.
func TestCloseUnblocksRun(t *testing.T) {
	fs := newFakeServer(t, strategy.CodeNone)
	defer fs.close()

	var mu sync.Mutex
	var got []string
	mgr := New[*struct{}](fs.addr(), recordingHandler(&mu, &got), &struct{}{})

	ctx := context.Background()
	runDone := make(chan error, 1)
	go func() { runDone <- mgr.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && !mgr.IsConnected() {
		time.Sleep(5 * time.Millisecond)
	}
	if !mgr.IsConnected() {
		t.Fatalf("manager did not connect in time")
	}

	closeDone := make(chan struct{})
	go func() {
		mgr.Close()
		close(closeDone)
	}()

	select {
	case <-closeDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return in time")
	}
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Close")
	}
}
