package db

import "time"

type DocumentModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	OwnerID        string `gorm:"index;not null"`
	ContentPath    string `gorm:"not null"`
	Status         string `gorm:"not null"`
	IsSigned       bool   `gorm:"not null"`
	LastSignedAt   *time.Time
	SignatureCount int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

type MultiSignProcessModel struct {
	DocumentID       string `gorm:"type:uuid;primaryKey"`
	PendingSigners   []byte `gorm:"type:jsonb;not null"`
	RequiredSigners  int    `gorm:"not null"`
	CompletedSigners []byte `gorm:"type:jsonb;not null"`
	InitiatedAt      time.Time `gorm:"not null"`
	InitiatedBy      string    `gorm:"not null"`
	DueDate          *time.Time
	CustomMessage    string
	ProcessCompleted bool `gorm:"not null"`
	CompletedAt      *time.Time
}

type SignatureModel struct {
	ID                     string `gorm:"type:uuid;primaryKey"`
	DocumentID             string `gorm:"type:uuid;index;not null"`
	SignerID               string `gorm:"index;not null"`
	DocumentHashAtSigning  string `gorm:"not null"`
	SignedAt               time.Time `gorm:"not null"`
	Reason                 string
	Position               []byte `gorm:"type:jsonb"`
	Strength               string `gorm:"not null"`
	CryptographicSignature []byte `gorm:"type:bytea;not null"`
	CanonicalPayload       []byte `gorm:"type:bytea;not null"`
	Valid                  bool   `gorm:"not null"`
	CreatedAt              time.Time `gorm:"not null"`
}

type ValidationEntryModel struct {
	ID          int64     `gorm:"primaryKey"`
	SignatureID string    `gorm:"type:uuid;index;not null"`
	Timestamp   time.Time `gorm:"not null"`
	IsValid     bool      `gorm:"not null"`
	Reason      string
}

type SignerModel struct {
	ID                string    `gorm:"primaryKey"`
	Email             string    `gorm:"uniqueIndex;not null"`
	DisplayName       string
	TwoFactorVerified bool      `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

type UserKeyModel struct {
	UserID     string    `gorm:"primaryKey"`
	PublicKey  []byte    `gorm:"type:bytea;not null"`
	PrivateKey []byte    `gorm:"type:bytea;not null"`
	Alg        string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type ShareModel struct {
	DocumentID string    `gorm:"type:uuid;primaryKey"`
	GranteeID  string    `gorm:"primaryKey"`
	Level      string    `gorm:"not null"`
	GrantedBy  string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

type OutboxEventModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	DocumentID   string `gorm:"type:uuid;index;not null"`
	Kind         string `gorm:"not null"`
	Payload      []byte `gorm:"type:jsonb;not null"`
	Status       string `gorm:"index;not null"`
	Attempts     int    `gorm:"not null"`
	LastError    string
	CreatedAt    time.Time `gorm:"not null"`
	DispatchedAt *time.Time
}

type AuditEventModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	DocumentID    string `gorm:"type:uuid;uniqueIndex:idx_audit_doc_seq;not null"`
	Seq           int64  `gorm:"uniqueIndex:idx_audit_doc_seq;not null"`
	EventType     string `gorm:"not null"`
	Payload       []byte `gorm:"type:jsonb;not null"`
	ActorID       string
	Result        string `gorm:"not null"`
	PrevEventHash string `gorm:"not null"`
	EventHash     string `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

type AnchorReceiptModel struct {
	ID          int64  `gorm:"primaryKey"`
	DocumentID  string `gorm:"type:uuid;index;not null"`
	Provider    string `gorm:"not null"`
	Digest      string `gorm:"not null"`
	Status      string `gorm:"not null"`
	ErrorCode   string
	EventType   string
	Actor       string
	PayloadHash string
	Ref         string
	CreatedAt   time.Time `gorm:"not null"`
}
