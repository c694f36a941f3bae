// Package snapshot spawns the ffmpeg subprocess that pulls exactly one
// still frame through the loopback RTSP proxy.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/similie/hyphen-rtsp-tunnel/internal/deviceid"
	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
)

var log = logging.L("snapshot")

// maxStderrCapture bounds how much ffmpeg stderr is retained for error
// reporting.
const maxStderrCapture = 64 * 1024

// terminateGrace is how long the watchdog waits after SIGTERM before
// escalating to SIGKILL.
const terminateGrace = 2 * time.Second

// Profile is the resolved camera connection parameters for one capture.
type Profile struct {
	CamUser  string
	CamPass  string
	RTSPPath string
}

// ResolveProfile applies sensor-metadata overrides over process-wide
// defaults. CAM_PASS must end up non-empty or the capture cannot proceed.
func ResolveProfile(defaults Profile, sensorMeta map[string]string) Profile {
	p := defaults
	if v, ok := sensorMeta["CAM_USER"]; ok && v != "" {
		p.CamUser = v
	}
	if v, ok := sensorMeta["CAM_PASS"]; ok && v != "" {
		p.CamPass = v
	}
	if v, ok := sensorMeta["RTSP_PATH"]; ok && v != "" {
		p.RTSPPath = v
	}
	return p
}

// RTSPURL builds the loopback RTSP URL ffmpeg connects through.
func RTSPURL(p Profile, proxyPort int) string {
	return fmt.Sprintf("rtsp://%s:%s@127.0.0.1:%d%s",
		url.QueryEscape(p.CamUser), url.QueryEscape(p.CamPass), proxyPort, p.RTSPPath)
}

// OutputPath builds the deterministic snapshot file path for one capture.
func OutputPath(outDir, deviceID string, capturedAt time.Time) string {
	safe := deviceid.Safe(deviceID)
	ts := capturedAt.UTC().Format(time.RFC3339Nano)
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return filepath.Join(outDir, safe, "snap-"+ts+".jpg")
}

// Result is the outcome of a capture attempt.
type Result struct {
	OutputPath string
	CapturedAt time.Time
}

// Run spawns ffmpeg against rtspURL, writing to outFile, and waits up to
// timeout for it to exit. Escalates SIGTERM then SIGKILL if the timeout
// elapses; the caller may also cancel ctx directly (e.g. on leader
// revocation) for the same escalation path.
func Run(ctx context.Context, rtspURL, outFile string, timeout time.Duration) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
		return Result{}, fmt.Errorf("snapshot: mkdir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-rtsp_transport", "tcp",
		"-i", rtspURL,
		"-an", "-frames:v", "1", "-q:v", "3", "-update", "1",
		outFile,
	}
	cmd := exec.Command("ffmpeg", args...)
	setProcessGroup(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: maxStderrCapture}

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("snapshot: start ffmpeg: %w", err)
	}
	go func() { done <- cmd.Wait() }()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		timedOut = true
		terminateProcessGroup(cmd)
		select {
		case waitErr = <-done:
		case <-time.After(terminateGrace):
			killProcessGroup(cmd)
			waitErr = <-done
		}
	}

	if waitErr != nil {
		code := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		if timedOut {
			log.Warn("ffmpeg watchdog fired", "exitCode", code, "stderr", stderr.String())
		} else {
			log.Warn("ffmpeg exited non-zero", "exitCode", code, "stderr", stderr.String())
		}
		return Result{}, fmt.Errorf("ffmpeg failed (exit %d)", code)
	}
	if timedOut {
		return Result{}, fmt.Errorf("ffmpeg failed (exit 0)")
	}

	info, err := os.Stat(outFile)
	if err != nil || info.Size() == 0 {
		return Result{}, fmt.Errorf("ffmpeg failed (no output produced)")
	}

	return Result{OutputPath: outFile, CapturedAt: time.Now().UTC()}, nil
}

// limitedWriter caps how many bytes of subprocess stderr are retained.
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.written >= w.limit {
		return len(p), nil
	}
	remaining := w.limit - w.written
	if len(p) > remaining {
		p = p[:remaining]
	}
	n, err := w.buf.Write(p)
	w.written += n
	return len(p), err
}
