package models

import (
	"context"
	"testing"
	"time"

	"github.com/luxtick/luxtick_backend/utils"
)

func TestConvertToAuditEvent(t *testing.T) {
	occurred := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	record := AuditEventRecord{
		ID:            42,
		UserId:        7,
		OccurredAt:    occurred,
		ReferenceId:   "2f6c1b44-1111-2222-3333-444455556666",
		ReferenceType: AuditReferenceReceipt,
		Action:        AuditActionFinalized,
		Payload:       []byte(`{"receipt_id":9}`),
		CorrelationId: "corr-1",
	}

	event := ConvertToAuditEvent(record)
	if event.ID != 42 || event.UserId != 7 {
		t.Fatalf("ids not carried: %+v", event)
	}
	if !event.OccurredAt.Equal(occurred) {
		t.Fatalf("occurred_at not carried: %v", event.OccurredAt)
	}
	if event.ReferenceType != "RECEIPT" || event.Action != "FINALIZED" {
		t.Fatalf("reference/action not carried: %+v", event)
	}
	if string(event.Payload) != `{"receipt_id":9}` {
		t.Fatalf("payload not carried: %s", event.Payload)
	}
	if event.CorrelationId != "corr-1" {
		t.Fatalf("correlation id not carried: %q", event.CorrelationId)
	}
}

func TestCorrelationIdFromContextOrNew(t *testing.T) {
	ctx := utils.SetCorrelationIdInContext(context.Background(), "corr-abc")
	if got := correlationIdFromContextOrNew(ctx); got != "corr-abc" {
		t.Fatalf("expected context correlation id, got %q", got)
	}

	generated := correlationIdFromContextOrNew(context.Background())
	if generated == "" {
		t.Fatal("expected a generated correlation id")
	}
	if generated == correlationIdFromContextOrNew(context.Background()) {
		t.Fatal("generated correlation ids must be unique")
	}
}
