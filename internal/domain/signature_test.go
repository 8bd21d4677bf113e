package domain

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"
)

func pngImage(size int) []byte {
	img := make([]byte, size)
	copy(img, []byte{0x89, 0x50, 0x4E, 0x47})
	return img
}

func jpegImage(size int) []byte {
	img := make([]byte, size)
	copy(img, []byte{0xFF, 0xD8})
	return img
}

func TestSniffImageFormat(t *testing.T) {
	if got := SniffImageFormat(pngImage(16)); got != ImagePNG {
		t.Fatalf("png sniff = %q", got)
	}
	if got := SniffImageFormat(jpegImage(16)); got != ImageJPEG {
		t.Fatalf("jpeg sniff = %q", got)
	}
	if got := SniffImageFormat([]byte("GIF89a")); got != ImageUnknown {
		t.Fatalf("gif sniff = %q", got)
	}
	if got := SniffImageFormat(nil); got != ImageUnknown {
		t.Fatalf("nil sniff = %q", got)
	}
}

func TestNewHandwrittenContext(t *testing.T) {
	if _, err := NewHandwrittenContext(nil); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("empty image: err = %v", err)
	}
	if _, err := NewHandwrittenContext(bytes.Repeat([]byte{0x00}, 1024)); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unknown format: err = %v", err)
	}
	if _, err := NewHandwrittenContext(pngImage(MinHandwrittenImageBytes - 1)); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("undersized png: err = %v", err)
	}

	ctx, err := NewHandwrittenContext(pngImage(MinHandwrittenImageBytes))
	if err != nil {
		t.Fatalf("png at floor: %v", err)
	}
	if ctx.Strength != StrengthHandwritten || ctx.Handwritten == nil {
		t.Fatalf("wrong variant: %+v", ctx)
	}
	if ctx.Handwritten.Format != ImagePNG {
		t.Fatalf("format = %q", ctx.Handwritten.Format)
	}

	ctx, err = NewHandwrittenContext(jpegImage(2048))
	if err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	if ctx.Handwritten.Format != ImageJPEG {
		t.Fatalf("format = %q", ctx.Handwritten.Format)
	}
}

func TestNewTwoFactorContext(t *testing.T) {
	now := time.Now()
	if _, err := NewTwoFactorContext("", now); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing session: err = %v", err)
	}
	if _, err := NewTwoFactorContext("sess-1", time.Time{}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing verification time: err = %v", err)
	}
	ctx, err := NewTwoFactorContext("sess-1", now)
	if err != nil {
		t.Fatalf("valid: %v", err)
	}
	if ctx.Strength != StrengthTwoFactor || ctx.TwoFactor == nil || ctx.TwoFactor.SessionID != "sess-1" {
		t.Fatalf("wrong variant: %+v", ctx)
	}
}

func TestNewBiometricContext(t *testing.T) {
	now := time.Now()
	cases := []struct {
		method, challenge string
		score             float64
		ts                time.Time
	}{
		{"", "ch", 0.9, now},
		{"face", "", 0.9, now},
		{"face", "ch", 0, now},
		{"face", "ch", 0.9, time.Time{}},
	}
	for _, tc := range cases {
		if _, err := NewBiometricContext(tc.method, tc.challenge, tc.score, tc.ts); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("case %+v: err = %v", tc, err)
		}
	}
	ctx, err := NewBiometricContext("face", "ch", 0.97, now)
	if err != nil {
		t.Fatalf("valid: %v", err)
	}
	if ctx.Biometric == nil || ctx.Biometric.Score != 0.97 {
		t.Fatalf("wrong variant: %+v", ctx)
	}
}

func selfSignedCert(t *testing.T, commonName string) []byte {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestNewExternalCertificateContext(t *testing.T) {
	if _, err := NewExternalCertificateContext(nil); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("empty cert: err = %v", err)
	}
	if _, err := NewExternalCertificateContext([]byte("not pem")); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("garbage cert: err = %v", err)
	}
	if _, err := NewExternalCertificateContext(selfSignedCert(t, "")); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("empty subject: err = %v", err)
	}
	ctx, err := NewExternalCertificateContext(selfSignedCert(t, "user-9"))
	if err != nil {
		t.Fatalf("valid cert: %v", err)
	}
	if ctx.Strength != StrengthExternalCertificate || ctx.Certificate == nil {
		t.Fatalf("wrong variant: %+v", ctx)
	}
	if ctx.Certificate.Subject != "user-9" {
		t.Fatalf("subject = %q", ctx.Certificate.Subject)
	}
}

func TestAuthStrengthKnown(t *testing.T) {
	for _, s := range []AuthStrength{StrengthBasic, StrengthTwoFactor, StrengthBiometric, StrengthHandwritten, StrengthExternalCertificate} {
		if !s.Known() {
			t.Fatalf("%q should be known", s)
		}
	}
	if AuthStrength("pinky_promise").Known() {
		t.Fatal("unknown strength accepted")
	}
}
