package main

import (
	"context"
	"log"
	"time"

	"signet/internal/config"
	"signet/internal/infra/access"
	"signet/internal/infra/anchor"
	"signet/internal/infra/anchor/redisledger"
	"signet/internal/infra/blob"
	cryptoinfra "signet/internal/infra/crypto"
	"signet/internal/infra/db"
	hashinfra "signet/internal/infra/hash"
	httpinfra "signet/internal/infra/http"
	"signet/internal/infra/keys/soft"
	"signet/internal/infra/lock"
	"signet/internal/infra/notify"
	"signet/internal/usecase"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	documents := db.NewDocumentRepository(store.DB)
	signatures := db.NewSignatureRepository(store.DB)
	signers := db.NewSignerRepository(store.DB)
	userKeys := db.NewUserKeyRepository(store.DB)
	shares := db.NewShareRepository(store.DB)
	outboxRepo := db.NewOutboxRepository(store.DB)
	auditRepo := db.NewAuditEventRepository(store.DB)
	receipts := db.NewAnchorReceiptRepository(store.DB)

	blobs, err := blob.NewFSStore(cfg.BlobRoot)
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}
	hashSvc := hashinfra.NewService(blobs)
	cryptoSvc := &cryptoinfra.Service{}
	keys := soft.NewManager(userKeys)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	var locker usecase.DocumentLocker
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, 0)
	} else {
		locker = lock.NewMemoryLocker()
	}

	sharing, err := access.NewEngine(ctx, cfg.AccessPolicyPath, shares, documents)
	if err != nil {
		log.Fatalf("failed to init access policy: %v", err)
	}

	registry, err := notify.NewRegistry()
	if err != nil {
		log.Fatalf("failed to init notification templates: %v", err)
	}
	notifier := notify.NewLogNotifier(registry, cfg.NotifyFrom)

	var providers []anchor.Provider
	if redisClient != nil {
		providers = append(providers, redisledger.NewProvider(redisClient, cfg.AnchorLedgerKey))
	}
	anchorSvc, err := anchor.NewService(providers, cfg.AnchorProviders, receipts)
	if err != nil {
		log.Fatalf("failed to init anchor service: %v", err)
	}

	auditEmitter := &usecase.AuditEmitter{Repo: auditRepo}
	outbox := &usecase.Outbox{
		Repo:     outboxRepo,
		Notifier: notifier,
		Anchor:   anchorSvc,
		Audit:    auditEmitter,
	}

	quorum := &usecase.QuorumCoordinator{
		Documents:  documents,
		Signatures: signatures,
		Signers:    signers,
		Sharing:    sharing,
		Notifier:   notifier,
		Locks:      locker,
		Outbox:     outbox,
	}
	signUC := &usecase.SignDocument{
		Documents:  documents,
		Signatures: signatures,
		Signers:    signers,
		Sharing:    sharing,
		Hash:       hashSvc,
		Keys:       keys,
		Crypto:     cryptoSvc,
		Quorum:     quorum,
		Outbox:     outbox,
	}
	verifyUC := &usecase.VerifySignature{
		Signatures: signatures,
		Documents:  documents,
		Keys:       keys,
		Hash:       hashSvc,
	}
	integrityUC := &usecase.VerifyDocumentIntegrity{
		Documents:  documents,
		Signatures: signatures,
		Verify:     verifyUC,
		CrossCheck: anchorSvc,
		Outbox:     outbox,
	}
	riskUC := &usecase.RiskAssessor{
		Signatures: signatures,
		Verify:     verifyUC,
	}

	go dispatchLoop(ctx, outbox, cfg)

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Sign:      signUC,
		Verify:    verifyUC,
		Integrity: integrityUC,
		Quorum:    quorum,
		Risk:      riskUC,
		Audit:     auditRepo,
		Documents: documents,
		Signers:   signers,
		Sharing:   sharing,
		Shares:    shares,
		Store:     store,
	})
	if err := srv.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// dispatchLoop retries outbox events whose inline dispatch failed.
func dispatchLoop(ctx context.Context, outbox *usecase.Outbox, cfg config.Config) {
	interval := time.Duration(cfg.OutboxPollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := outbox.DispatchPending(ctx, cfg.OutboxBatchSize); err != nil {
				log.Printf("outbox dispatch: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
