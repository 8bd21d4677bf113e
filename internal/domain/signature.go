package domain

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

type AuthStrength string

const (
	StrengthBasic               AuthStrength = "basic"
	StrengthTwoFactor           AuthStrength = "twoFactor"
	StrengthBiometric           AuthStrength = "biometric"
	StrengthHandwritten         AuthStrength = "handwritten"
	StrengthExternalCertificate AuthStrength = "externalCertificate"
)

func (s AuthStrength) Known() bool {
	switch s {
	case StrengthBasic, StrengthTwoFactor, StrengthBiometric, StrengthHandwritten, StrengthExternalCertificate:
		return true
	}
	return false
}

// Position is an optional page placement for a visible signature mark.
type Position struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type TwoFactorContext struct {
	SessionID  string
	VerifiedAt time.Time
}

type BiometricContext struct {
	Method    string
	Challenge string
	Score     float64
	Timestamp time.Time
}

type HandwrittenContext struct {
	Image  []byte
	Format ImageFormat
}

type ExternalCertificateContext struct {
	CertificatePEM []byte
	Subject        string
}

// AuthContext is a tagged union keyed by Strength. Exactly the variant for
// the declared strength is set; constructors validate the variant's
// required fields so downstream code never probes optional fields.
type AuthContext struct {
	Strength    AuthStrength
	TwoFactor   *TwoFactorContext
	Biometric   *BiometricContext
	Handwritten *HandwrittenContext
	Certificate *ExternalCertificateContext
}

func NewBasicContext() AuthContext {
	return AuthContext{Strength: StrengthBasic}
}

func NewTwoFactorContext(sessionID string, verifiedAt time.Time) (AuthContext, error) {
	if sessionID == "" {
		return AuthContext{}, fmt.Errorf("%w: two-factor session id is required", ErrBadRequest)
	}
	if verifiedAt.IsZero() {
		return AuthContext{}, fmt.Errorf("%w: two-factor verification time is required", ErrBadRequest)
	}
	return AuthContext{
		Strength:  StrengthTwoFactor,
		TwoFactor: &TwoFactorContext{SessionID: sessionID, VerifiedAt: verifiedAt},
	}, nil
}

func NewBiometricContext(method, challenge string, score float64, timestamp time.Time) (AuthContext, error) {
	if method == "" {
		return AuthContext{}, fmt.Errorf("%w: biometric method is required", ErrBadRequest)
	}
	if challenge == "" {
		return AuthContext{}, fmt.Errorf("%w: biometric challenge is required", ErrBadRequest)
	}
	if score <= 0 {
		return AuthContext{}, fmt.Errorf("%w: biometric score is required", ErrBadRequest)
	}
	if timestamp.IsZero() {
		return AuthContext{}, fmt.Errorf("%w: biometric timestamp is required", ErrBadRequest)
	}
	return AuthContext{
		Strength: StrengthBiometric,
		Biometric: &BiometricContext{
			Method:    method,
			Challenge: challenge,
			Score:     score,
			Timestamp: timestamp,
		},
	}, nil
}

// MinHandwrittenImageBytes rejects empty signature canvases: a legitimate
// pen stroke encodes to well over this floor in either supported format.
const MinHandwrittenImageBytes = 512

func NewHandwrittenContext(image []byte) (AuthContext, error) {
	if len(image) == 0 {
		return AuthContext{}, fmt.Errorf("%w: handwritten signature image is required", ErrBadRequest)
	}
	format := SniffImageFormat(image)
	if format == ImageUnknown {
		return AuthContext{}, fmt.Errorf("%w: handwritten signature image must be PNG or JPEG", ErrBadRequest)
	}
	if len(image) < MinHandwrittenImageBytes {
		return AuthContext{}, fmt.Errorf("%w: handwritten signature image too small (%d bytes)", ErrBadRequest, len(image))
	}
	return AuthContext{
		Strength:    StrengthHandwritten,
		Handwritten: &HandwrittenContext{Image: image, Format: format},
	}, nil
}

func NewExternalCertificateContext(certificatePEM []byte) (AuthContext, error) {
	if len(certificatePEM) == 0 {
		return AuthContext{}, fmt.Errorf("%w: certificate is required", ErrBadRequest)
	}
	block, _ := pem.Decode(certificatePEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return AuthContext{}, fmt.Errorf("%w: certificate is not valid PEM", ErrBadRequest)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return AuthContext{}, fmt.Errorf("%w: certificate does not parse: %v", ErrBadRequest, err)
	}
	if cert.Subject.CommonName == "" {
		return AuthContext{}, fmt.Errorf("%w: certificate subject is required", ErrBadRequest)
	}
	return AuthContext{
		Strength: StrengthExternalCertificate,
		Certificate: &ExternalCertificateContext{
			CertificatePEM: certificatePEM,
			Subject:        cert.Subject.CommonName,
		},
	}, nil
}

type ImageFormat string

const (
	ImagePNG     ImageFormat = "png"
	ImageJPEG    ImageFormat = "jpeg"
	ImageUnknown ImageFormat = "unknown"
)

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	jpegMagic = []byte{0xFF, 0xD8}
)

// SniffImageFormat dispatches on the leading magic bytes. Unrecognized
// formats are reported as unknown, never guessed.
func SniffImageFormat(data []byte) ImageFormat {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return ImagePNG
	case bytes.HasPrefix(data, jpegMagic):
		return ImageJPEG
	default:
		return ImageUnknown
	}
}

type ValidationEntry struct {
	Timestamp time.Time
	IsValid   bool
	Reason    string
}

// SignatureRecord is immutable after creation except for Valid and
// ValidationHistory. CanonicalPayload retains the exact signed bytes so
// verification never has to reconstruct them.
type SignatureRecord struct {
	ID                     string
	DocumentID             string
	SignerID               string
	DocumentHashAtSigning  string
	SignedAt               time.Time
	Reason                 string
	Position               *Position
	Strength               AuthStrength
	CryptographicSignature []byte
	CanonicalPayload       []byte

	Valid             bool
	ValidationHistory []ValidationEntry
}
