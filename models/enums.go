package models

// DraftStatus tracks a draft receipt through the ingestion state machine.
// Only the held states are persisted; Received/Extracted/Validated/
// Reconciled exist transiently inside the pipeline run.
type DraftStatus string

const (
	DraftStatusAwaitingConfirmation DraftStatus = "AWAITING_CONFIRMATION"
	DraftStatusFinalized            DraftStatus = "FINALIZED"
	DraftStatusDiscarded            DraftStatus = "DISCARDED"
)

// ResolutionStatus is the per-line-item outcome of product reconciliation.
type ResolutionStatus string

const (
	ResolutionMatched   ResolutionStatus = "MATCHED"
	ResolutionAmbiguous ResolutionStatus = "AMBIGUOUS"
	ResolutionNoMatch   ResolutionStatus = "NO_MATCH"
)

// Unresolved reports whether a line item still needs a user decision.
func (s ResolutionStatus) Unresolved() bool {
	return s == ResolutionAmbiguous || s == ResolutionNoMatch
}

type AuditReferenceType string

const (
	AuditReferenceReceipt AuditReferenceType = "RECEIPT"
	AuditReferenceDraft   AuditReferenceType = "DRAFT"
	AuditReferenceProduct AuditReferenceType = "PRODUCT"
)

type AuditAction string

const (
	AuditActionFinalized AuditAction = "FINALIZED"
	AuditActionDiscarded AuditAction = "DISCARDED"
	AuditActionCreated   AuditAction = "CREATED"
)

// Outbox publish lifecycle for AuditEventRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusPublished  = "PUBLISHED"
	OutboxPublishStatusDead       = "DEAD"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
	DiscountTypeBogo       DiscountType = "bogo"
)
