package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/utils"
	"gorm.io/gorm"
)

// AuditEventRecord is the transactional outbox row for audit events.
// It is written inside the same transaction as the state change it
// describes; the dispatcher publishes it to Pub/Sub after commit.
type AuditEventRecord struct {
	ID            int                `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	UserId        int                `gorm:"index;not null" json:"user_id"`
	OccurredAt    time.Time          `gorm:"index;not null" json:"occurred_at"`
	ReferenceId   string             `gorm:"size:64;not null" json:"reference_id"`
	ReferenceType AuditReferenceType `gorm:"type:enum('RECEIPT','DRAFT','PRODUCT')" json:"reference_type"`
	Action        AuditAction        `gorm:"type:enum('FINALIZED','DISCARDED','CREATED')" json:"action"`
	Payload       []byte             `gorm:"type:blob" json:"payload"`

	// Publish metadata (dispatcher-owned, publish happens after commit).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|PUBLISHED|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToAuditEvent(record AuditEventRecord) config.AuditEvent {
	return config.AuditEvent{
		ID:            record.ID,
		UserId:        record.UserId,
		OccurredAt:    record.OccurredAt,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}

// PublishAudit writes the audit record inside the caller's DB
// transaction but does NOT publish to Pub/Sub. Publishing is performed
// asynchronously by the outbox dispatcher after commit.
func PublishAudit(ctx context.Context, tx *gorm.DB, userId int, refId string, refType AuditReferenceType, action AuditAction, obj interface{}) error {
	payload, err := utils.MarshalToJSON(obj)
	if err != nil {
		return err
	}

	record := AuditEventRecord{
		UserId:        userId,
		OccurredAt:    time.Now().UTC(),
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		Payload:       []byte(payload),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
