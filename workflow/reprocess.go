package workflow

import (
	"context"
	"fmt"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"gorm.io/gorm"
)

// ReprocessStats summarizes one reprocessing run.
type ReprocessStats struct {
	Scanned int
	Linked  int
}

// ReprocessUnlinkedItems re-runs reconciliation over receipt items that
// never got a catalog link. Useful after the catalog has grown: labels
// that were NO_MATCH at ingestion time may resolve now. Only clear
// matches are linked; ambiguity still waits for the user.
func ReprocessUnlinkedItems(ctx context.Context, db *gorm.DB, userId int) (*ReprocessStats, error) {
	logger := config.GetLogger()

	matcher := NewProductMatcher(db)
	index, err := matcher.IndexForUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	var items []models.ReceiptItem
	err = db.WithContext(ctx).
		Joins("JOIN receipts r ON r.id = receipt_items.receipt_id").
		Where("r.user_id = ? AND receipt_items.product_id IS NULL", userId).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	stats := &ReprocessStats{Scanned: len(items)}
	for _, item := range items {
		outcome := index.Resolve(item.RawLabel)
		if outcome.Status != models.ResolutionMatched {
			continue
		}

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.ReceiptItem{}).
				Where("id = ?", item.ID).
				Update("product_id", outcome.ProductId).Error; err != nil {
				return err
			}
			return models.LearnAlias(ctx, tx, userId, outcome.ProductId, NormalizeLabel(item.RawLabel))
		})
		if err != nil {
			config.LogError(logger, "workflow", "ReprocessUnlinkedItems", "link item", fmt.Sprint(item.ID), err)
			continue
		}
		stats.Linked++
	}

	if stats.Linked > 0 {
		matcher.Invalidate(userId)
	}
	return stats, nil
}

// AllUserIds lists users for whole-database reprocessing runs.
func AllUserIds(ctx context.Context, db *gorm.DB) ([]int, error) {
	var ids []int
	if err := db.WithContext(ctx).Model(&models.User{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
