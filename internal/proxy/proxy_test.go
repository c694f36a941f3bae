package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/similie/hyphen-rtsp-tunnel/internal/capture"
	"github.com/similie/hyphen-rtsp-tunnel/internal/session"
)

func newEmptyManager(t *testing.T) *session.Manager {
	t.Helper()
	return session.NewManager(capture.New())
}

// TestAcceptWithNoActiveCaptureClosesSocket verifies that a loopback accept
// while no capture is in flight closes the accepted socket immediately.
func TestAcceptWithNoActiveCaptureClosesSocket(t *testing.T) {
	mgr := newEmptyManager(t)
	l := New(0, mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Serve(ctx)

	var addr net.Addr
	for i := 0; i < 50; i++ {
		if l.ln != nil {
			addr = l.ln.Addr()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if addr == nil {
		t.Fatal("listener never started")
	}

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	if err == nil {
		t.Fatal("expected the accepted socket to be closed when no capture is in flight")
	}
}
