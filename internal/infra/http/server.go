package http

import (
	"context"
	"net/http"

	"signet/internal/config"
	"signet/internal/domain"
	"signet/internal/infra/db"
	"signet/internal/usecase"

	"github.com/gin-gonic/gin"
)

type DocumentStore interface {
	Create(ctx context.Context, doc domain.Document) (*domain.Document, error)
	GetByID(ctx context.Context, documentID string) (*domain.Document, error)
	SetStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error
}

type ShareStore interface {
	ListByDocument(ctx context.Context, documentID string) ([]db.Share, error)
}

type SignerStore interface {
	Get(ctx context.Context, userID string) (*domain.Signer, error)
	Upsert(ctx context.Context, signer domain.Signer) error
}

type Server struct {
	cfg config.Config
	r   *gin.Engine

	signUC      *usecase.SignDocument
	verifyUC    *usecase.VerifySignature
	integrityUC *usecase.VerifyDocumentIntegrity
	quorum      *usecase.QuorumCoordinator
	risk        *usecase.RiskAssessor
	audit       usecase.AuditEventRepository

	documents DocumentStore
	signers   SignerStore
	sharing   usecase.SharingCollaborator
	shares    ShareStore
	store     *db.Store

	adminAPIKey string
}

type ServerDeps struct {
	Sign      *usecase.SignDocument
	Verify    *usecase.VerifySignature
	Integrity *usecase.VerifyDocumentIntegrity
	Quorum    *usecase.QuorumCoordinator
	Risk      *usecase.RiskAssessor
	Audit     usecase.AuditEventRepository
	Documents DocumentStore
	Signers   SignerStore
	Sharing   usecase.SharingCollaborator
	Shares    ShareStore
	Store     *db.Store
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		signUC:      deps.Sign,
		verifyUC:    deps.Verify,
		integrityUC: deps.Integrity,
		quorum:      deps.Quorum,
		risk:        deps.Risk,
		audit:       deps.Audit,
		documents:   deps.Documents,
		signers:     deps.Signers,
		sharing:     deps.Sharing,
		shares:      deps.Shares,
		store:       deps.Store,
		adminAPIKey: cfg.AdminAPIKey,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "no-db"
		if s.store != nil && s.store.DB != nil {
			mode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/documents", s.handleCreateDocument)
		v1.GET("/documents/:document_id", s.handleGetDocument)
		v1.POST("/documents/:document_id/shares", s.handleGrantAccess)
		v1.GET("/documents/:document_id/shares", s.handleListShares)
		v1.PATCH("/documents/:document_id/status", s.handleSetStatus)
		v1.POST("/documents/:document_id/signatures", s.handleSign)
		v1.GET("/documents/:document_id/integrity", s.handleIntegrity)
		v1.GET("/documents/:document_id/audit", s.handleAuditTrail)

		v1.POST("/documents/:document_id/multisign", s.handleInitiateMultiSign)
		v1.GET("/documents/:document_id/multisign", s.handleMultiSignStatus)
		v1.DELETE("/documents/:document_id/multisign", s.handleCancelMultiSign)

		v1.GET("/signatures/:signature_id/verification", s.handleVerify)
		v1.GET("/signatures/:signature_id/risk", s.handleRisk)

		v1.POST("/signers", s.handleUpsertSigner)
	}
	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Run(addr string) error {
	return s.r.Run(addr)
}

func (s *Server) Handler() http.Handler {
	return s.r
}
