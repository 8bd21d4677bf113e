package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"signet/internal/domain"
	"signet/internal/infra/db"
	"signet/internal/usecase"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.signet.access.result"

// defaultPolicy is the built-in sharing policy: owners can do anything,
// grantees get what their share level allows. Deployments can override it
// with ACCESS_POLICY_PATH.
const defaultPolicy = `package signet.access

import rego.v1

default allow_access := false

default allow_sign := false

allow_access if input.user_id == input.owner_id

allow_access if input.level != ""

allow_sign if input.user_id == input.owner_id

allow_sign if input.level == "sign"

result := {"allow_access": allow_access, "allow_sign": allow_sign}
`

type policyInput struct {
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
	OwnerID    string `json:"owner_id"`
	Level      string `json:"level"`
}

type policyResult struct {
	AllowAccess bool `json:"allow_access"`
	AllowSign   bool `json:"allow_sign"`
}

type ShareStore interface {
	Upsert(ctx context.Context, share db.Share) error
	Get(ctx context.Context, documentID, granteeID string) (*db.Share, error)
}

type DocumentReader interface {
	GetByID(ctx context.Context, documentID string) (*domain.Document, error)
}

// Engine decides document access through a prepared rego query over the
// persisted share grants.
type Engine struct {
	query     rego.PreparedEvalQuery
	Shares    ShareStore
	Documents DocumentReader
}

func NewEngine(ctx context.Context, policyPath string, shares ShareStore, documents DocumentReader) (*Engine, error) {
	src := defaultPolicy
	if policyPath != "" {
		raw, err := os.ReadFile(policyPath)
		if err != nil {
			return nil, fmt.Errorf("read access policy: %w", err)
		}
		src = string(raw)
	}
	prepared, err := rego.New(
		rego.Query(defaultQuery),
		rego.Module("access.rego", src),
		rego.StrictBuiltinErrors(true),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare access policy: %w", err)
	}
	return &Engine{query: prepared, Shares: shares, Documents: documents}, nil
}

func (e *Engine) GrantAccess(ctx context.Context, ownerID, documentID, granteeID string, level usecase.AccessLevel) error {
	switch level {
	case usecase.AccessRead, usecase.AccessComment, usecase.AccessSign:
	default:
		return fmt.Errorf("%w: unknown access level %q", domain.ErrBadRequest, level)
	}
	return e.Shares.Upsert(ctx, db.Share{
		DocumentID: documentID,
		GranteeID:  granteeID,
		Level:      string(level),
		GrantedBy:  ownerID,
	})
}

func (e *Engine) CanAccess(ctx context.Context, userID, documentID string) (bool, error) {
	result, err := e.evaluate(ctx, userID, documentID)
	if err != nil {
		return false, err
	}
	return result.AllowAccess, nil
}

func (e *Engine) CanSign(ctx context.Context, userID, documentID string) (bool, error) {
	result, err := e.evaluate(ctx, userID, documentID)
	if err != nil {
		return false, err
	}
	return result.AllowSign, nil
}

func (e *Engine) evaluate(ctx context.Context, userID, documentID string) (policyResult, error) {
	doc, err := e.Documents.GetByID(ctx, documentID)
	if err != nil {
		return policyResult{}, err
	}
	level := ""
	share, err := e.Shares.Get(ctx, documentID, userID)
	if err == nil {
		level = share.Level
	} else if !errors.Is(err, domain.ErrNotFound) {
		return policyResult{}, err
	}
	input := policyInput{
		UserID:     userID,
		DocumentID: documentID,
		OwnerID:    doc.OwnerID,
		Level:      level,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return policyResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return policyResult{}, errors.New("empty access policy result")
	}
	return decodeResult(results[0].Expressions[0].Value)
}

func decodeResult(value any) (policyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return policyResult{}, err
	}
	var result policyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return policyResult{}, err
	}
	return result, nil
}

var _ usecase.SharingCollaborator = (*Engine)(nil)
