// Package gateway wires components C1-C9 into the process lifecycle (C10):
// storage worker, leader lock, WebSocket server, and loopback proxy,
// started and stopped together and gated by leadership.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/similie/hyphen-rtsp-tunnel/internal/auth"
	"github.com/similie/hyphen-rtsp-tunnel/internal/capture"
	"github.com/similie/hyphen-rtsp-tunnel/internal/config"
	"github.com/similie/hyphen-rtsp-tunnel/internal/events"
	"github.com/similie/hyphen-rtsp-tunnel/internal/health"
	"github.com/similie/hyphen-rtsp-tunnel/internal/leader"
	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
	"github.com/similie/hyphen-rtsp-tunnel/internal/mtls"
	"github.com/similie/hyphen-rtsp-tunnel/internal/proxy"
	"github.com/similie/hyphen-rtsp-tunnel/internal/registry"
	"github.com/similie/hyphen-rtsp-tunnel/internal/session"
	"github.com/similie/hyphen-rtsp-tunnel/internal/snapshot"
	"github.com/similie/hyphen-rtsp-tunnel/internal/storage"
)

var log = logging.L("gateway")

// drainTimeout bounds how long shutdown waits for in-flight storage jobs.
const drainTimeout = 5 * time.Second

// Gateway owns the full set of collaborators and drives their lifecycle.
type Gateway struct {
	cfg     *config.Config
	health  *health.Monitor
	bus     *events.Bus
	elector *leader.Elector
	coord   *capture.Coordinator
	sessMgr *session.Manager
	worker  *events.StorageWorker
	proxyLn *proxy.Listener

	sessCfg  session.Config
	sessDeps session.Deps

	upgrader websocket.Upgrader

	mu        sync.Mutex
	httpSrv   *http.Server
	accepting bool
}

// New builds a Gateway from cfg. It constructs but does not start any
// collaborator.
func New(cfg *config.Config) (*Gateway, error) {
	ctx := context.Background()

	registryClient := registry.NewHTTPClient(cfg.RegistryBaseURL, cfg.RegistryAuthToken)
	registryCache := registry.New(registryClient)
	authenticator := auth.New(registryCache)

	storageAdapter, err := storage.New(ctx, storage.Config{
		Mode:        cfg.StorageMode,
		DeleteLocal: cfg.StorageDeleteLocal,
		LocalDir:    cfg.OutDir,
		S3Bucket:    cfg.S3Bucket,
		S3Prefix:    cfg.S3Prefix,
		S3Region:    cfg.S3Region,

		GCSBucket: cfg.GCSBucket,
		GCSPrefix: cfg.GCSPrefix,

		AzureContainer:   cfg.AzureContainer,
		AzurePrefix:      cfg.AzurePrefix,
		AzureAccountName: cfg.AzureAccountName,
		AzureAccountKey:  cfg.AzureAccountKey,

		B2Bucket:    cfg.B2Bucket,
		B2Prefix:    cfg.B2Prefix,
		B2AccountID: cfg.B2AccountID,
		B2AppKey:    cfg.B2AppKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: build storage adapter: %w", err)
	}

	bus := events.New()
	worker := events.NewStorageWorker(bus, storageAdapter, cfg.StorageConcurrency, cfg.StorageDeleteLocal, cfg.UseDeviceTZOffset)
	coord := capture.New()
	sessMgr := session.NewManager(coord)
	elector := leader.New(cfg.RedisAddr)
	proxyLn := proxy.New(cfg.ProxyPort, sessMgr)

	sessCfg := session.Config{
		HelloWait:      cfg.HelloWait(),
		RequireAuth:    cfg.RequireAuth,
		AutoCapture:    cfg.AutoCapture,
		CaptureTimeout: cfg.CaptureTimeout(),
		ProxyPort:      cfg.ProxyPort,
		OutDir:         cfg.OutDir,
		DefaultProfile: snapshot.Profile{
			CamUser:  cfg.CamUser,
			CamPass:  cfg.CamPass,
			RTSPPath: cfg.RTSPPath,
		},
	}
	sessDeps := session.Deps{
		Auth:     authenticator,
		Registry: registryCache,
		Capture:  coord,
		Bus:      bus,
	}

	return &Gateway{
		cfg:      cfg,
		health:   health.NewMonitor(),
		bus:      bus,
		elector:  elector,
		coord:    coord,
		sessMgr:  sessMgr,
		worker:   worker,
		proxyLn:  proxyLn,
		sessCfg:  sessCfg,
		sessDeps: sessDeps,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
	}, nil
}

// Health exposes the gateway's health monitor for external reporting.
func (g *Gateway) Health() *health.Monitor { return g.health }

// Run starts every collaborator and blocks until ctx is canceled, then
// shuts down in reverse start order.
func (g *Gateway) Run(ctx context.Context) error {
	log.Info("gateway starting", "wsPort", g.cfg.WSPort, "proxyPort", g.cfg.ProxyPort)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		g.worker.Run(ctx)
	}()
	g.health.Update("storage", health.Healthy, "")

	elected := g.elector.OnElected()
	revoked := g.elector.OnRevoked()

	wg.Add(1)
	go func() {
		defer wg.Done()
		g.elector.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		g.watchLeadership(ctx, elected, revoked)
	}()

	<-ctx.Done()
	log.Info("gateway shutting down")

	g.stopAccepting()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	g.worker.Drain(drainCtx)

	wg.Wait()
	log.Info("gateway stopped")
	return nil
}

// watchLeadership gates public acceptance on leadership: a follower must
// never accept WebSocket connections, per the leader lock's contract.
func (g *Gateway) watchLeadership(ctx context.Context, elected <-chan struct{}, revoked <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-elected:
			g.health.Update("leader", health.Healthy, "elected")
			if err := g.startAccepting(ctx); err != nil {
				log.Error("failed to start accepting connections", "error", err)
				g.health.Update("leader", health.Unhealthy, err.Error())
			}
		case reason := <-revoked:
			g.health.Update("leader", health.Degraded, reason)
			g.coord.Abort("leader revoked: " + reason)
			g.stopAccepting()
		}
	}
}

func (g *Gateway) startAccepting(ctx context.Context) error {
	g.mu.Lock()
	if g.accepting {
		g.mu.Unlock()
		return nil
	}
	g.accepting = true
	g.mu.Unlock()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", g.cfg.WSPort))
	if err != nil {
		return fmt.Errorf("listen on ws port: %w", err)
	}
	if g.cfg.WSTLS {
		tlsCfg, err := mtls.BuildServerTLSConfigFromFiles(g.cfg.TLSCert, g.cfg.TLSKey)
		if err != nil {
			ln.Close()
			return fmt.Errorf("build ws tls config: %w", err)
		}
		ln = tlsListener(ln, tlsCfg)
	}

	srv := &http.Server{Handler: http.HandlerFunc(g.handleWS)}
	g.mu.Lock()
	g.httpSrv = srv
	g.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ws server exited", "error", err)
		}
	}()

	go func() {
		if err := g.proxyLn.Serve(ctx); err != nil {
			log.Error("proxy listener exited", "error", err)
		}
	}()

	log.Info("now accepting connections as leader")
	return nil
}

func (g *Gateway) stopAccepting() {
	g.mu.Lock()
	if !g.accepting {
		g.mu.Unlock()
		return
	}
	g.accepting = false
	srv := g.httpSrv
	g.httpSrv = nil
	g.mu.Unlock()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
	g.proxyLn.Close()
	log.Info("stopped accepting connections")
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	if !g.elector.IsLeader() {
		http.Error(w, "not leader", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("ws upgrade failed", "error", err)
		return
	}

	sess, err := session.Accept(wsAdapter{conn}, r.RemoteAddr, g.sessCfg, g.sessDeps)
	if err != nil {
		log.Error("failed to accept session", "error", err)
		conn.Close()
		return
	}

	g.sessMgr.Register(sess)
	defer g.sessMgr.Unregister(sess.ID())

	sess.Run(r.Context())
}

func tlsListener(ln net.Listener, cfg *tls.Config) net.Listener {
	return tls.NewListener(ln, cfg)
}

// wsAdapter adapts a *websocket.Conn to the session package's narrow wsConn
// interface, so session need not import gorilla/websocket's concrete type.
type wsAdapter struct {
	conn *websocket.Conn
}

func (a wsAdapter) ReadMessage() (int, []byte, error)   { return a.conn.ReadMessage() }
func (a wsAdapter) WriteMessage(mt int, b []byte) error { return a.conn.WriteMessage(mt, b) }
func (a wsAdapter) SetReadLimit(limit int64)            { a.conn.SetReadLimit(limit) }
func (a wsAdapter) Close() error                        { return a.conn.Close() }
func (a wsAdapter) RemoteAddr() net.Addr                { return a.conn.RemoteAddr() }
