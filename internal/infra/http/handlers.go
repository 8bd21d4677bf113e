package http

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"signet/internal/domain"
	"signet/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type positionRequest struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type authRequest struct {
	SessionID  string  `json:"session_id"`
	VerifiedAt string  `json:"verified_at"`
	Method     string  `json:"method"`
	Challenge  string  `json:"challenge"`
	Score      float64 `json:"score"`
	Timestamp  string  `json:"timestamp"`
	ImageB64   string  `json:"image_base64"`
	CertPEM    string  `json:"certificate_pem"`
}

type signRequest struct {
	SignerID string           `json:"signer_id"`
	Strength string           `json:"strength"`
	Reason   string           `json:"reason"`
	Position *positionRequest `json:"position"`
	Auth     authRequest      `json:"auth"`
}

type signatureResponse struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	SignerID   string           `json:"signer_id"`
	Digest     string           `json:"digest"`
	SignedAt   string           `json:"signed_at"`
	Reason     string           `json:"reason,omitempty"`
	Position   *positionRequest `json:"position,omitempty"`
	Strength   string           `json:"strength"`
	Signature  string           `json:"signature"`
	Valid      bool             `json:"valid"`
}

type verificationResponse struct {
	SignatureID string `json:"signature_id"`
	SignerID    string `json:"signer_id"`
	IsValid     bool   `json:"is_valid"`
	Reason      string `json:"reason,omitempty"`
	VerifiedAt  string `json:"verified_at"`
}

type integrityResponse struct {
	DocumentID    string                 `json:"document_id"`
	Intact        bool                   `json:"intact"`
	CurrentDigest string                 `json:"current_digest"`
	Signatures    []verificationResponse `json:"signatures"`
	VerifiedAt    string                 `json:"verified_at"`
}

func (s *Server) handleCreateDocument(c *gin.Context) {
	var req struct {
		OwnerID     string `json:"owner_id"`
		ContentPath string `json:"content_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.OwnerID == "" || req.ContentPath == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "owner_id and content_path are required")
		return
	}
	doc, err := s.documents.Create(c.Request.Context(), domain.Document{
		OwnerID:     req.OwnerID,
		ContentPath: req.ContentPath,
		Status:      domain.DocumentPending,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, documentResponse(doc))
}

func (s *Server) handleGetDocument(c *gin.Context) {
	doc, err := s.documents.GetByID(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentResponse(doc))
}

func (s *Server) handleGrantAccess(c *gin.Context) {
	var req struct {
		OwnerID   string `json:"owner_id"`
		GranteeID string `json:"grantee_id"`
		Level     string `json:"level"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	documentID := c.Param("document_id")
	doc, err := s.documents.GetByID(c.Request.Context(), documentID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if doc.OwnerID != req.OwnerID {
		writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "only the document owner may grant access")
		return
	}
	err = s.sharing.GrantAccess(c.Request.Context(), req.OwnerID, documentID, req.GranteeID, usecase.AccessLevel(req.Level))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": documentID, "grantee_id": req.GranteeID, "level": req.Level})
}

func (s *Server) handleListShares(c *gin.Context) {
	documentID := c.Param("document_id")
	requester := c.Query("requester_id")
	if requester == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "requester_id is required")
		return
	}
	doc, err := s.documents.GetByID(c.Request.Context(), documentID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if doc.OwnerID != requester {
		writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "only the document owner may list shares")
		return
	}
	shares, err := s.shares.ListByDocument(c.Request.Context(), documentID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(shares))
	for _, share := range shares {
		out = append(out, gin.H{
			"grantee_id": share.GranteeID,
			"level":      share.Level,
			"granted_by": share.GrantedBy,
		})
	}
	c.JSON(http.StatusOK, gin.H{"document_id": documentID, "shares": out})
}

func (s *Server) handleSetStatus(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	status := domain.DocumentStatus(req.Status)
	switch status {
	case domain.DocumentPending, domain.DocumentProcessing, domain.DocumentCompleted, domain.DocumentError:
	default:
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "unknown document status")
		return
	}
	documentID := c.Param("document_id")
	if err := s.documents.SetStatus(c.Request.Context(), documentID, status); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": documentID, "status": req.Status})
}

func (s *Server) handleSign(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	strength := domain.AuthStrength(req.Strength)
	authCtx, err := buildAuthContext(strength, req.Auth)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	var position *domain.Position
	if req.Position != nil {
		position = &domain.Position{
			Page:   req.Position.Page,
			X:      req.Position.X,
			Y:      req.Position.Y,
			Width:  req.Position.Width,
			Height: req.Position.Height,
		}
	}
	record, err := s.signUC.Execute(c.Request.Context(), usecase.SignRequest{
		DocumentID: c.Param("document_id"),
		SignerID:   req.SignerID,
		Strength:   strength,
		Context:    authCtx,
		Position:   position,
		Reason:     req.Reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildSignatureResponse(record))
}

func (s *Server) handleVerify(c *gin.Context) {
	result, err := s.verifyUC.Execute(c.Request.Context(), c.Param("signature_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildVerificationResponse(result))
}

func (s *Server) handleIntegrity(c *gin.Context) {
	integrity, err := s.integrityUC.Execute(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := integrityResponse{
		DocumentID:    integrity.DocumentID,
		Intact:        integrity.Intact,
		CurrentDigest: integrity.CurrentDigest,
		Signatures:    make([]verificationResponse, 0, len(integrity.Signatures)),
		VerifiedAt:    integrity.VerifiedAt.Format(time.RFC3339),
	}
	for i := range integrity.Signatures {
		out.Signatures = append(out.Signatures, buildVerificationResponse(&integrity.Signatures[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleInitiateMultiSign(c *gin.Context) {
	var req struct {
		OwnerID         string   `json:"owner_id"`
		SignerIDs       []string `json:"signer_ids"`
		RequiredSigners int      `json:"required_signers"`
		DueDate         string   `json:"due_date"`
		CustomMessage   string   `json:"custom_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	opts := usecase.InitiateOptions{
		RequiredSigners: req.RequiredSigners,
		CustomMessage:   req.CustomMessage,
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "due_date must be RFC3339")
			return
		}
		opts.DueDate = &due
	}
	report, err := s.quorum.Initiate(c.Request.Context(), c.Param("document_id"), req.OwnerID, req.SignerIDs, opts)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"invited":  report.Invited,
		"granted":  report.Granted,
		"notified": report.Notified,
	})
}

func (s *Server) handleMultiSignStatus(c *gin.Context) {
	status, err := s.quorum.GetStatus(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := gin.H{
		"document_id":        status.DocumentID,
		"pending_signers":    status.PendingSigners,
		"required_signers":   status.RequiredSigners,
		"completed_signers":  status.CompletedSigners,
		"remaining_signers":  status.RemainingSigners,
		"process_completed":  status.ProcessCompleted,
		"initiated_at":       status.InitiatedAt.Format(time.RFC3339),
		"initiated_by":       status.InitiatedBy,
		"quorum_unreachable": status.QuorumUnreachable,
	}
	if status.CompletedAt != nil {
		out["completed_at"] = status.CompletedAt.Format(time.RFC3339)
	}
	if status.DueDate != nil {
		out["due_date"] = status.DueDate.Format(time.RFC3339)
	}
	if status.CustomMessage != "" {
		out["custom_message"] = status.CustomMessage
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCancelMultiSign(c *gin.Context) {
	requester := c.Query("requester_id")
	if requester == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "requester_id is required")
		return
	}
	if err := s.quorum.Cancel(c.Request.Context(), c.Param("document_id"), requester); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": c.Param("document_id"), "cancelled": true})
}

func (s *Server) handleRisk(c *gin.Context) {
	assessment, err := s.risk.Assess(c.Request.Context(), c.Param("signature_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"signature_id": assessment.SignatureID,
		"level":        string(assessment.Level),
		"score":        assessment.Score,
		"factors":      assessment.Factors,
		"assessed_at":  assessment.AssessedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleAuditTrail(c *gin.Context) {
	if s.audit == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "audit trail not available")
		return
	}
	events, err := s.audit.ListByDocument(c.Request.Context(), c.Param("document_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(events))
	for _, event := range events {
		out = append(out, gin.H{
			"seq":             event.Seq,
			"event_type":      string(event.EventType),
			"actor_id":        event.ActorID,
			"result":          string(event.Result),
			"payload":         event.Payload,
			"prev_event_hash": event.PrevEventHash,
			"event_hash":      event.EventHash,
			"created_at":      event.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"document_id": c.Param("document_id"), "events": out})
}

func (s *Server) handleUpsertSigner(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req struct {
		ID                string `json:"id"`
		Email             string `json:"email"`
		DisplayName       string `json:"display_name"`
		TwoFactorVerified bool   `json:"two_factor_verified"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.ID == "" || req.Email == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "id and email are required")
		return
	}
	err := s.signers.Upsert(c.Request.Context(), domain.Signer{
		ID:                req.ID,
		Email:             req.Email,
		DisplayName:       req.DisplayName,
		TwoFactorVerified: req.TwoFactorVerified,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := c.GetHeader("X-Admin-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}

func buildAuthContext(strength domain.AuthStrength, auth authRequest) (domain.AuthContext, error) {
	switch strength {
	case domain.StrengthBasic:
		return domain.NewBasicContext(), nil
	case domain.StrengthTwoFactor:
		verifiedAt, err := parseOptionalTime(auth.VerifiedAt)
		if err != nil {
			return domain.AuthContext{}, err
		}
		return domain.NewTwoFactorContext(auth.SessionID, verifiedAt)
	case domain.StrengthBiometric:
		timestamp, err := parseOptionalTime(auth.Timestamp)
		if err != nil {
			return domain.AuthContext{}, err
		}
		return domain.NewBiometricContext(auth.Method, auth.Challenge, auth.Score, timestamp)
	case domain.StrengthHandwritten:
		image, err := base64.StdEncoding.DecodeString(auth.ImageB64)
		if err != nil {
			return domain.AuthContext{}, fmt.Errorf("%w: handwritten image is not valid base64", domain.ErrBadRequest)
		}
		return domain.NewHandwrittenContext(image)
	case domain.StrengthExternalCertificate:
		return domain.NewExternalCertificateContext([]byte(auth.CertPEM))
	default:
		return domain.AuthContext{}, fmt.Errorf("%w: unknown authentication strength %q", domain.ErrBadRequest, strength)
	}
}

func parseOptionalTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamps must be RFC3339", domain.ErrBadRequest)
	}
	return t, nil
}

func documentResponse(doc *domain.Document) gin.H {
	out := gin.H{
		"id":              doc.ID,
		"owner_id":        doc.OwnerID,
		"content_path":    doc.ContentPath,
		"status":          string(doc.Status),
		"is_signed":       doc.SignatureMetadata.IsSigned,
		"signature_count": doc.SignatureMetadata.SignatureCount,
	}
	if doc.SignatureMetadata.LastSignedAt != nil {
		out["last_signed_at"] = doc.SignatureMetadata.LastSignedAt.Format(time.RFC3339)
	}
	if doc.MultiSign != nil {
		out["multisign_active"] = !doc.MultiSign.ProcessCompleted
		out["multisign_completed"] = doc.MultiSign.ProcessCompleted
	}
	return out
}

func buildSignatureResponse(record *domain.SignatureRecord) signatureResponse {
	out := signatureResponse{
		ID:         record.ID,
		DocumentID: record.DocumentID,
		SignerID:   record.SignerID,
		Digest:     record.DocumentHashAtSigning,
		SignedAt:   record.SignedAt.Format(time.RFC3339),
		Reason:     record.Reason,
		Strength:   string(record.Strength),
		Signature:  base64.StdEncoding.EncodeToString(record.CryptographicSignature),
		Valid:      record.Valid,
	}
	if record.Position != nil {
		out.Position = &positionRequest{
			Page:   record.Position.Page,
			X:      record.Position.X,
			Y:      record.Position.Y,
			Width:  record.Position.Width,
			Height: record.Position.Height,
		}
	}
	return out
}

func buildVerificationResponse(result *domain.VerificationResult) verificationResponse {
	return verificationResponse{
		SignatureID: result.SignatureID,
		SignerID:    result.SignerID,
		IsValid:     result.IsValid,
		Reason:      result.Reason,
		VerifiedAt:  result.VerifiedAt.Format(time.RFC3339),
	}
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeErrorCode(c, http.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, domain.ErrCryptoFailure):
		writeErrorCode(c, http.StatusInternalServerError, "CRYPTO_FAILURE", "cryptographic operation failed")
	default:
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
