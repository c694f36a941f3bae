// Package proxy implements the loopback RTSP proxy (C5): a TCP listener
// bound to 127.0.0.1 that binds each accepted connection to the single
// replica-wide capturing session and pipes bytes through the WebSocket
// tunnel in both directions.
package proxy

import (
	"context"
	"fmt"
	"net"

	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
	"github.com/similie/hyphen-rtsp-tunnel/internal/session"
)

var log = logging.L("proxy")

const readBufSize = 32 * 1024

// Listener is the loopback TCP proxy.
type Listener struct {
	addr     string
	sessions *session.Manager
	ln       net.Listener
}

// New creates a Listener bound to 127.0.0.1:port. The bind address is not
// configurable — the camera-facing loopback socket must never be reachable
// off-host.
func New(port int, sessions *session.Manager) *Listener {
	return &Listener{addr: fmt.Sprintf("127.0.0.1:%d", port), sessions: sessions}
}

// Serve starts accepting connections until ctx is canceled or Close is
// called. Blocks; run it in its own goroutine.
func (l *Listener) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.ln = ln
	log.Info("loopback proxy listening", "addr", l.addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go l.handleAccept(conn)
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

func (l *Listener) handleAccept(conn net.Conn) {
	sess, ok := l.sessions.ActiveCapture()
	if !ok {
		log.Debug("loopback accept with no active capture, dropping")
		conn.Close()
		return
	}

	if err := sess.BindProxy(conn); err != nil {
		log.Warn("failed to bind loopback connection to session", "error", err)
		conn.Close()
		return
	}

	l.pump(conn, sess)
}

// pump reads from the loopback socket and forwards each chunk to the
// device over the WS tunnel, until either side closes.
func (l *Listener) pump(conn net.Conn, sess *session.Session) {
	defer sess.UnbindProxy()

	buf := make([]byte, readBufSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if sendErr := sess.SendProxyBytes(chunk); sendErr != nil {
				log.Debug("tunnel send failed, tearing down proxy pump", "error", sendErr)
				return
			}
		}
		if err != nil {
			return
		}
	}
}
