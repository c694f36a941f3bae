// Package auth implements the device authenticator (C2): nonce issuance and
// RSA-SHA256 signature verification against a certificate fetched from the
// device registry.
package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
)

var log = logging.L("auth")

// nonceSize is the number of random bytes in a minted nonce, before
// base64 encoding (24 bytes, per the wire contract).
const nonceSize = 24

// CertificateFetcher resolves a device's certificate PEM. It is the
// narrow slice of the external registry collaborator that the
// authenticator needs; certificate lookups are never cached by the
// registry (security posture), so this call always reaches the
// collaborator directly.
type CertificateFetcher interface {
	Certificate(ctx context.Context, deviceID string) (certPEM string, err error)
}

// Authenticator verifies device signatures against certificates resolved
// through a CertificateFetcher.
type Authenticator struct {
	certs CertificateFetcher
}

// New creates an Authenticator backed by certs.
func New(certs CertificateFetcher) *Authenticator {
	return &Authenticator{certs: certs}
}

// NewNonce returns 24 cryptographically random bytes, base64-encoded.
func NewNonce() (string, error) {
	buf := make([]byte, nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Verify checks an AUTH signature. The canonical signed message is the
// exact UTF-8 string deviceId + "." + nonce. Any fetch failure, missing
// certificate, malformed base64, or verification failure returns false;
// Verify never returns an error to the caller — it is designed to be a
// safe boolean predicate on the authentication hot path.
func (a *Authenticator) Verify(ctx context.Context, deviceID, nonceB64, sigB64 string) bool {
	certPEM, err := a.certs.Certificate(ctx, deviceID)
	if err != nil || certPEM == "" {
		log.Warn("certificate fetch failed", "deviceId", deviceID, "error", err)
		return false
	}

	pub, err := parsePublicKey(certPEM)
	if err != nil {
		log.Warn("certificate parse failed", "deviceId", deviceID, "error", err)
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		log.Warn("signature base64 decode failed", "deviceId", deviceID, "error", err)
		return false
	}

	message := deviceID + "." + nonceB64
	digest := sha256.Sum256([]byte(message))

	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		log.Warn("signature verification failed", "deviceId", deviceID, "error", err)
		return false
	}
	return true
}

func parsePublicKey(certPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in certificate")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse x509 certificate: %w", err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate public key is not RSA")
	}
	return pub, nil
}
