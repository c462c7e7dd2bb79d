package workflow

import (
	"context"
	"time"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"gorm.io/gorm"
)

// ExpireStaleDrafts discards drafts whose confirmation window has
// passed. Returns how many drafts were expired.
func ExpireStaleDrafts(ctx context.Context, db *gorm.DB) (int64, error) {
	result := db.WithContext(ctx).Model(&models.DraftReceipt{}).
		Where("status = ? AND expires_at <= ?", models.DraftStatusAwaitingConfirmation, time.Now().UTC()).
		Update("status", models.DraftStatusDiscarded)
	if result.Error != nil {
		logger := config.GetLogger()
		config.LogError(logger, "workflow", "ExpireStaleDrafts", "expire", nil, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// RunDraftExpiry sweeps expired drafts on an interval until the
// context is cancelled.
func RunDraftExpiry(ctx context.Context, db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := ExpireStaleDrafts(ctx, db); err == nil && n > 0 {
				config.GetLogger().WithField("expired", n).Info("expired stale drafts")
			}
		}
	}
}
