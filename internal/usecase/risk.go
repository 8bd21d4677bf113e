package usecase

import (
	"context"
	"time"

	"signet/internal/domain"
)

// Risk factor codes, deterministic and sorted by the point they carry.
const (
	RiskFactorVerificationFailed = "VERIFICATION_FAILED"
	RiskFactorBasicStrength      = "BASIC_AUTH_STRENGTH"
	RiskFactorStale              = "SIGNATURE_OLDER_THAN_ONE_YEAR"
)

const (
	riskPointsVerificationFailed = 10
	riskPointsBasicStrength      = 3
	riskPointsStale              = 1

	riskHighThreshold   = 10
	riskMediumThreshold = 5

	staleAge = 365 * 24 * time.Hour
)

// RiskAssessor is a pure classification over a live verification outcome,
// the authentication strength, and the signature's age. No caching, no
// persistence, no side effects.
type RiskAssessor struct {
	Signatures SignatureRepository
	Verify     *VerifySignature
	Clock      Clock
}

func (ra *RiskAssessor) Assess(ctx context.Context, signatureID string) (*domain.RiskAssessment, error) {
	record, err := ra.Signatures.GetByID(ctx, signatureID)
	if err != nil {
		return nil, err
	}
	verification, err := ra.Verify.Execute(ctx, signatureID)
	if err != nil {
		return nil, err
	}

	now := ra.now().UTC()
	score := 0
	var factors []string
	if !verification.IsValid {
		score += riskPointsVerificationFailed
		factors = append(factors, RiskFactorVerificationFailed)
	}
	if record.Strength == domain.StrengthBasic {
		score += riskPointsBasicStrength
		factors = append(factors, RiskFactorBasicStrength)
	}
	if now.Sub(record.SignedAt) > staleAge {
		score += riskPointsStale
		factors = append(factors, RiskFactorStale)
	}

	level := domain.RiskLow
	switch {
	case score >= riskHighThreshold:
		level = domain.RiskHigh
	case score >= riskMediumThreshold:
		level = domain.RiskMedium
	}

	return &domain.RiskAssessment{
		SignatureID: signatureID,
		Level:       level,
		Score:       score,
		Factors:     factors,
		AssessedAt:  now,
	}, nil
}

func (ra *RiskAssessor) now() time.Time {
	if ra.Clock != nil {
		return ra.Clock()
	}
	return time.Now()
}
