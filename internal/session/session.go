// Package session implements the per-connection state machine (C4):
// NEW -> HELLOED -> AUTHED -> CLOSING, owning the session's bound proxy
// socket and driving the single-shot auto-capture flow.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/similie/hyphen-rtsp-tunnel/internal/auth"
	"github.com/similie/hyphen-rtsp-tunnel/internal/capture"
	"github.com/similie/hyphen-rtsp-tunnel/internal/deviceid"
	"github.com/similie/hyphen-rtsp-tunnel/internal/events"
	"github.com/similie/hyphen-rtsp-tunnel/internal/frame"
	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
	"github.com/similie/hyphen-rtsp-tunnel/internal/registry"
	"github.com/similie/hyphen-rtsp-tunnel/internal/snapshot"
	"github.com/similie/hyphen-rtsp-tunnel/internal/stage"
)

var log = logging.L("session")

// MaxPayload is the WS frame size ceiling (8 MiB), per the tunnel's wire
// contract.
const MaxPayload = 8 * 1024 * 1024

// State is a session's position in the handshake/capture lifecycle.
type State string

const (
	StateNew     State = "new"
	StateHelloed State = "helloed"
	StateAuthed  State = "authed"
	StateClosing State = "closing"
)

// Config parameterizes session behavior from environment configuration.
type Config struct {
	HelloWait      time.Duration
	RequireAuth    bool
	AutoCapture    bool
	CaptureTimeout time.Duration
	ProxyPort      int
	OutDir         string
	DefaultProfile snapshot.Profile
}

// Deps are the collaborators a session needs, wired by the gateway.
type Deps struct {
	Auth     *auth.Authenticator
	Registry *registry.Cache
	Capture  *capture.Coordinator
	Bus      *events.Bus
}

// Session is one WebSocket connection's handshake and capture state.
type Session struct {
	id     string
	remote string
	conn   wsConn
	cfg    Config
	deps   Deps

	helloTimer *time.Timer
	writeMu    sync.Mutex

	mu            sync.Mutex
	state         State
	deviceID      string
	payloadID     string
	nonce         string
	tzOffsetHours *int
	captureActive bool
	proxyConn     net.Conn
	closed        bool
}

// newID mints the opaque 8-byte hex session identifier.
func newID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Accept creates a Session for a freshly-accepted WebSocket connection. The
// caller must invoke Run to begin the handshake.
func Accept(conn wsConn, remote string, cfg Config, deps Deps) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(MaxPayload)
	return &Session{
		id:     id,
		remote: remote,
		conn:   conn,
		cfg:    cfg,
		deps:   deps,
		state:  StateNew,
	}, nil
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// CaptureActive reports whether this session currently holds the capture
// slot (i.e. is eligible for a loopback proxy binding).
func (s *Session) CaptureActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureActive
}

// Closed reports whether the session has finished tearing down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Run drives the session's read pump until the connection closes or the
// handshake/capture flow ends it. Blocks until the session is closed.
func (s *Session) Run(ctx context.Context) {
	defer s.beginClosing(ctx, "connection ended")

	s.writeText(frame.Ready())
	s.armHelloTimer(ctx)

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		switch mt {
		case websocket.TextMessage:
			s.handleText(ctx, string(data))
		case websocket.BinaryMessage:
			s.handleBinaryIncoming(data)
		}
	}
}

func (s *Session) armHelloTimer(ctx context.Context) {
	s.helloTimer = time.AfterFunc(s.cfg.HelloWait, func() {
		s.mu.Lock()
		expired := s.state == StateNew
		s.mu.Unlock()
		if !expired {
			return
		}
		s.deps.Bus.PublishFailed(events.Failed{
			SessionID: s.id, Remote: s.remote,
			Stage: string(stage.Hello), Error: "no_hello",
		})
		s.beginClosing(ctx, "no_hello")
	})
}

func (s *Session) handleText(ctx context.Context, line string) {
	cmd := frame.ParseCommand(line)
	switch cmd.Verb {
	case frame.VerbHello:
		parsed, ok := frame.ParseHelloArgs(cmd.Args)
		if !ok {
			s.failHello(ctx, "bad_hello")
			return
		}
		s.handleHello(ctx, parsed)
	case frame.VerbAuth:
		parsed, ok := frame.ParseAuthArgs(cmd.Args)
		if !ok {
			return
		}
		s.handleAuth(ctx, parsed)
	}
}

func (s *Session) handleHello(ctx context.Context, parsed frame.ParsedHello) {
	s.mu.Lock()
	if s.state != StateNew {
		s.mu.Unlock()
		return
	}
	deviceID := deviceid.Safe(parsed.DeviceID)
	nonce, err := auth.NewNonce()
	if err != nil {
		s.mu.Unlock()
		s.failHello(ctx, "internal_error")
		return
	}
	s.deviceID = deviceID
	s.payloadID = parsed.PayloadID
	s.nonce = nonce
	s.state = StateHelloed
	s.mu.Unlock()

	if s.helloTimer != nil {
		s.helloTimer.Stop()
	}

	dev := s.deps.Registry.Device(ctx, deviceID)
	s.mu.Lock()
	s.tzOffsetHours = dev.TZOffsetHours
	s.mu.Unlock()

	s.writeText(frame.Chal(nonce))

	if !s.cfg.RequireAuth {
		s.writeText(frame.AuthOK())
		s.becomeAuthed(ctx)
	}
}

func (s *Session) failHello(ctx context.Context, reason string) {
	s.writeText(frame.HelloFail(reason))
	s.deps.Bus.PublishFailed(events.Failed{
		SessionID: s.id, Remote: s.remote,
		Stage: string(stage.Hello), Error: reason,
	})
	s.beginClosing(ctx, reason)
}

func (s *Session) handleAuth(ctx context.Context, parsed frame.ParsedAuth) {
	s.mu.Lock()
	state := s.state
	deviceID := s.deviceID
	nonce := s.nonce
	s.mu.Unlock()

	if state == StateNew {
		s.failAuth(ctx, "no_chal")
		return
	}
	if state != StateHelloed {
		return // already authed (or closing): AUTH is a no-op
	}
	if deviceid.Safe(parsed.DeviceID) != deviceID {
		s.failAuth(ctx, "device_mismatch")
		return
	}
	if !s.deps.Auth.Verify(ctx, deviceID, nonce, parsed.SigB64) {
		s.failAuth(ctx, "verify_failed")
		return
	}

	s.writeText(frame.AuthOK())
	s.becomeAuthed(ctx)
}

// failAuth sends AUTH_FAIL. Under REQUIRE_AUTH=0 this is advisory only: the
// session is already AUTHED by the time a HELLO-following AUTH arrives in
// that mode, so only an AUTH before HELLO (no_chal) reaches this path, and
// the session stays open.
func (s *Session) failAuth(ctx context.Context, reason string) {
	s.writeText(frame.AuthFail(reason))
	if !s.cfg.RequireAuth {
		return
	}
	s.deps.Bus.PublishFailed(events.Failed{
		SessionID: s.id, DeviceID: s.deviceID, PayloadID: s.payloadID, Remote: s.remote,
		Stage: string(stage.Auth), Error: reason,
	})
	s.beginClosing(ctx, reason)
}

func (s *Session) becomeAuthed(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateAuthed || s.state == StateClosing {
		s.mu.Unlock()
		return
	}
	s.state = StateAuthed
	s.mu.Unlock()

	if s.cfg.AutoCapture {
		go s.attemptCapture(ctx)
	}
}

func (s *Session) handleBinaryIncoming(data []byte) {
	tag, payload, err := frame.Decode(data)
	if err != nil || tag != frame.TagDeviceToProxy {
		return
	}
	s.mu.Lock()
	proxyConn := s.proxyConn
	s.mu.Unlock()
	if proxyConn == nil {
		return
	}
	if _, err := proxyConn.Write(payload); err != nil {
		log.Debug("proxy write failed", "sessionId", s.id, "error", err)
	}
}

// BindProxy attaches an accepted loopback TCP connection to this session
// and sends the OPEN control frame. Called by the loopback proxy (C5) once
// it has selected this session as the globally-capturing one.
func (s *Session) BindProxy(conn net.Conn) error {
	s.mu.Lock()
	if s.closed || !s.captureActive || s.proxyConn != nil {
		s.mu.Unlock()
		return fmt.Errorf("session: not eligible for proxy binding")
	}
	s.proxyConn = conn
	s.mu.Unlock()

	return s.writeBinary(frame.TagOpen, nil)
}

// UnbindProxy detaches the loopback connection, if any, and sends CLOSE.
func (s *Session) UnbindProxy() {
	s.mu.Lock()
	conn := s.proxyConn
	s.proxyConn = nil
	closed := s.closed
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !closed {
		s.writeBinary(frame.TagClose, nil)
	}
}

// SendProxyBytes wraps a chunk read from the bound loopback socket and
// forwards it to the device as a tag-1 frame.
func (s *Session) SendProxyBytes(chunk []byte) error {
	return s.writeBinary(frame.TagProxyToDevice, chunk)
}

func (s *Session) writeText(line string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		log.Debug("text write failed", "sessionId", s.id, "error", err)
	}
}

func (s *Session) writeBinary(tag frame.Tag, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame.Encode(tag, payload))
}

// beginClosing is the idempotent terminal transition: stop timers, detach
// the proxy socket, send CLOSE, and close the WS.
func (s *Session) beginClosing(ctx context.Context, logReason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateClosing
	proxyConn := s.proxyConn
	s.proxyConn = nil
	s.mu.Unlock()

	if s.helloTimer != nil {
		s.helloTimer.Stop()
	}
	if proxyConn != nil {
		proxyConn.Close()
	}
	s.writeBinary(frame.TagClose, nil)
	s.conn.Close()

	log.Info("session closed", "sessionId", s.id, "reason", logReason)
}

func (s *Session) emitCaptureFailed(errMsg string) {
	s.mu.Lock()
	deviceID, payloadID := s.deviceID, s.payloadID
	s.mu.Unlock()
	se := stage.Wrap(stage.Capture, errors.New(errMsg))
	s.deps.Bus.PublishFailed(events.Failed{
		SessionID: s.id, DeviceID: deviceID, PayloadID: payloadID, Remote: s.remote,
		Stage: string(se.Stage), Error: se.Unwrap().Error(),
	})
}

// attemptCapture runs the single auto-capture this session will ever
// perform: reserve the replica-wide capture slot, resolve the camera
// profile, run ffmpeg against the loopback proxy, and emit the terminal
// event. The session closes once the attempt concludes either way — one
// session tunnels exactly one snapshot.
func (s *Session) attemptCapture(ctx context.Context) {
	if !s.deps.Capture.Reserve(s.id) {
		s.emitCaptureFailed("Global capture already in progress")
		s.beginClosing(ctx, "Global capture already in progress")
		return
	}
	defer s.deps.Capture.Release()

	s.mu.Lock()
	s.captureActive = true
	deviceID, payloadID := s.deviceID, s.payloadID
	tzOffsetHours := s.tzOffsetHours
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.captureActive = false
		s.mu.Unlock()
	}()

	sensorMeta := s.deps.Registry.SensorMetaFor(ctx, deviceID)
	profile := snapshot.ResolveProfile(s.cfg.DefaultProfile, sensorMeta)
	if profile.CamPass == "" {
		s.emitCaptureFailed("CAM_PASS required")
		s.beginClosing(ctx, "CAM_PASS required")
		return
	}

	rtspURL := snapshot.RTSPURL(profile, s.cfg.ProxyPort)
	outFile := snapshot.OutputPath(s.cfg.OutDir, deviceID, time.Now())

	captureCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.deps.Capture.Aborted():
			cancel()
		case <-captureCtx.Done():
		}
	}()

	result, err := snapshot.Run(captureCtx, rtspURL, outFile, s.cfg.CaptureTimeout)

	s.mu.Lock()
	proxyConn := s.proxyConn
	s.proxyConn = nil
	s.mu.Unlock()
	if proxyConn != nil {
		proxyConn.Close()
	}

	if err != nil {
		s.emitCaptureFailed(err.Error())
		s.beginClosing(ctx, err.Error())
		return
	}

	s.deps.Bus.PublishCaptured(events.Captured{
		SessionID: s.id, DeviceID: deviceID, PayloadID: payloadID, Remote: s.remote,
		LocalPath: result.OutputPath, CapturedAt: result.CapturedAt, TZOffsetHours: tzOffsetHours,
	})
	s.beginClosing(ctx, "capture complete")
}
