package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"
)

type fakeCertFetcher struct {
	certPEM string
	err     error
}

func (f *fakeCertFetcher) Certificate(ctx context.Context, deviceID string) (string, error) {
	return f.certPEM, f.err
}

func generateTestCert(t *testing.T) (certPEM string, key *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "devA"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	block := &pem.Block{Type: "CERTIFICATE", Bytes: der}
	return string(pem.EncodeToMemory(block)), key
}

func sign(t *testing.T, key *rsa.PrivateKey, deviceID, nonceB64 string) string {
	t.Helper()
	digest := sha256.Sum256([]byte(deviceID + "." + nonceB64))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func TestNewNonceLengthAndUniqueness(t *testing.T) {
	n1, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(n1)
	if err != nil {
		t.Fatalf("nonce is not valid base64: %v", err)
	}
	if len(decoded) != nonceSize {
		t.Fatalf("expected %d raw bytes, got %d", nonceSize, len(decoded))
	}

	n2, _ := NewNonce()
	if n1 == n2 {
		t.Fatal("two generated nonces collided")
	}
}

func TestVerifySucceedsWithValidSignature(t *testing.T) {
	certPEM, key := generateTestCert(t)
	authr := New(&fakeCertFetcher{certPEM: certPEM})

	nonce, _ := NewNonce()
	sig := sign(t, key, "devA", nonce)

	if !authr.Verify(context.Background(), "devA", nonce, sig) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifyFailsWithWrongDevice(t *testing.T) {
	certPEM, key := generateTestCert(t)
	authr := New(&fakeCertFetcher{certPEM: certPEM})

	nonce, _ := NewNonce()
	sig := sign(t, key, "devA", nonce)

	if authr.Verify(context.Background(), "devB", nonce, sig) {
		t.Fatal("expected signature bound to devA to fail for devB")
	}
}

func TestVerifyFailsOnTruncatedBase64(t *testing.T) {
	certPEM, _ := generateTestCert(t)
	authr := New(&fakeCertFetcher{certPEM: certPEM})

	if authr.Verify(context.Background(), "devA", "nonce", "not-valid-base64!!!") {
		t.Fatal("expected truncated/invalid base64 signature to fail without panicking")
	}
}

func TestVerifyFailsOnFetchError(t *testing.T) {
	authr := New(&fakeCertFetcher{err: errors.New("registry unavailable")})
	if authr.Verify(context.Background(), "devA", "nonce", "AAAA") {
		t.Fatal("expected fetch failure to yield false, not panic or true")
	}
}

func TestVerifyFailsOnMissingCertificate(t *testing.T) {
	authr := New(&fakeCertFetcher{certPEM: ""})
	if authr.Verify(context.Background(), "devA", "nonce", "AAAA") {
		t.Fatal("expected empty certificate to yield false")
	}
}
