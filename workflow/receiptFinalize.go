package workflow

import (
	"context"
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"github.com/luxtick/luxtick_backend/utils"
	"gorm.io/gorm"
)

// LineCorrection is the user's decision for one draft line at
// confirmation time. Exactly one of ProductId / ProductName / Skip is
// meaningful: pick a candidate, name a product to create or reuse, or
// leave the line unlinked.
type LineCorrection struct {
	Index       int    `json:"index" binding:"required"`
	ProductId   *int   `json:"product_id"`
	ProductName string `json:"product_name"`
	Skip        bool   `json:"skip"`
}

// FinalizeDraft commits an awaiting draft into a receipt. Calling it
// again for an already finalized draft returns the same receipt and
// changes nothing; a discarded draft cannot be finalized.
func FinalizeDraft(ctx context.Context, db *gorm.DB, userId int, draftId string, corrections []LineCorrection) (*models.Receipt, error) {
	logger := config.GetLogger()

	var receipt *models.Receipt
	createdProducts := []*models.Product{}
	learnedAliases := 0

	// Enrichment runs before the transaction so model latency never
	// holds the draft's row lock.
	var proposals map[string]*ProductProposal
	if pending, err := models.GetDraftForUser(ctx, db, userId, draftId); err == nil && pending.Status == models.DraftStatusAwaitingConfirmation {
		var pendingItems []models.DraftLineItem
		if err := utils.UnmarshalFromJSON(pending.Payload, &pendingItems); err == nil {
			proposals = proposalsForNewLines(ctx, pendingItems, corrections)
		}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := models.GetDraftForUpdate(ctx, tx, userId, draftId)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		if err != nil {
			return err
		}

		switch draft.Status {
		case models.DraftStatusFinalized:
			existing, err := models.GetReceiptByDraftId(ctx, tx, draftId)
			if err != nil {
				return err
			}
			receipt = existing
			return nil
		case models.DraftStatusDiscarded:
			return utils.ErrorDraftNotPending
		}

		var items []models.DraftLineItem
		if err := utils.UnmarshalFromJSON(draft.Payload, &items); err != nil {
			return err
		}

		byIndex := map[int]LineCorrection{}
		for _, c := range corrections {
			if c.Index < 1 || c.Index > len(items) {
				return fmt.Errorf("%w: line %d does not exist", utils.ErrorValidationFailed, c.Index)
			}
			byIndex[c.Index] = c
		}

		store, err := models.FindOrCreateStore(ctx, tx, draft.StoreName)
		if err != nil {
			return err
		}

		receipt = &models.Receipt{
			UserId:   userId,
			StoreId:  &store.ID,
			DraftId:  &draft.ID,
			Date:     draft.Date,
			Subtotal: draft.Subtotal,
			Tax:      draft.Tax,
			Total:    draft.Total,
			Currency: draft.Currency,
			ImageUrl: draft.ImageUrl,
		}
		if err := tx.WithContext(ctx).Create(receipt).Error; err != nil {
			var mysqlErr *mysqlDriver.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
				return utils.ErrorFinalizationConflict
			}
			return err
		}

		for i, item := range items {
			productId, created, err := resolveFinalProduct(ctx, tx, userId, item, byIndex[i+1], proposals[item.NormalizedLabel])
			if err != nil {
				return err
			}
			if created != nil {
				createdProducts = append(createdProducts, created)
			}
			if productId != nil {
				learnedAliases++
				if err := models.LearnAlias(ctx, tx, userId, *productId, item.NormalizedLabel); err != nil {
					return err
				}
				if proposal := proposals[item.NormalizedLabel]; created != nil && proposal != nil {
					for _, alias := range proposal.Aliases {
						if err := models.LearnAlias(ctx, tx, userId, *productId, NormalizeLabel(alias)); err != nil {
							return err
						}
					}
				}
			}

			receiptItem := models.ReceiptItem{
				ReceiptId: receipt.ID,
				ProductId: productId,
				RawLabel:  item.RawLabel,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				LineTotal: item.LineTotal,
			}
			if err := tx.WithContext(ctx).Create(&receiptItem).Error; err != nil {
				return err
			}
			receipt.Items = append(receipt.Items, receiptItem)
		}

		if err := tx.WithContext(ctx).Model(&models.DraftReceipt{}).
			Where("id = ?", draft.ID).
			Updates(map[string]interface{}{
				"status":     models.DraftStatusFinalized,
				"receipt_id": receipt.ID,
			}).Error; err != nil {
			return err
		}

		if err := models.PublishAudit(ctx, tx, userId, fmt.Sprint(receipt.ID), models.AuditReferenceReceipt, models.AuditActionFinalized, receipt); err != nil {
			return err
		}
		for _, p := range createdProducts {
			if err := models.PublishAudit(ctx, tx, userId, fmt.Sprint(p.ID), models.AuditReferenceProduct, models.AuditActionCreated, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "workflow", "FinalizeDraft", "finalize", draftId, err)
		return nil, err
	}

	if err := config.RemoveRedisKey(draftCacheKey(draftId)); err != nil {
		config.LogError(logger, "workflow", "FinalizeDraft", "drop draft cache", draftId, err)
	}
	if catalogDirty(len(createdProducts), learnedAliases) {
		NewProductMatcher(db).Invalidate(userId)
	}
	return receipt, nil
}

// catalogDirty reports whether a finalization changed the matching
// catalog. Learned aliases count on their own: a receipt that links
// every line to existing products still teaches the matcher new
// spellings, and the cached index must not survive them.
func catalogDirty(createdProducts int, learnedAliases int) bool {
	return createdProducts > 0 || learnedAliases > 0
}

// resolveFinalProduct decides the catalog link for one line at commit
// time. Unresolved lines without a correction become new products when
// they never matched, and stay unlinked when they were ambiguous. A
// proposal, when present, names and categorizes the created product.
func resolveFinalProduct(ctx context.Context, tx *gorm.DB, userId int, item models.DraftLineItem, correction LineCorrection, proposal *ProductProposal) (*int, *models.Product, error) {
	if correction.Skip {
		return nil, nil, nil
	}
	if correction.ProductId != nil {
		if err := utils.ValidateResourceId[models.Product](ctx, userId, *correction.ProductId); err != nil {
			return nil, nil, fmt.Errorf("%w: product %d not found", utils.ErrorValidationFailed, *correction.ProductId)
		}
		return correction.ProductId, nil, nil
	}
	if correction.ProductName != "" {
		product, err := models.FindOrCreateProduct(ctx, tx, userId, utils.TitleCase(correction.ProductName), nil)
		if err != nil {
			return nil, nil, err
		}
		return &product.ID, product, nil
	}

	switch item.ResolutionStatus {
	case models.ResolutionMatched:
		return item.ProductId, nil, nil
	case models.ResolutionNoMatch:
		if item.NormalizedLabel == "" {
			return nil, nil, nil
		}
		name := utils.TitleCase(item.NormalizedLabel)
		var categoryId *int
		if proposal != nil {
			name = utils.TitleCase(proposal.CanonicalName)
			if proposal.CategoryPath != "" {
				category, err := models.EnsureCategoryPath(ctx, tx, proposal.CategoryPath)
				if err != nil {
					return nil, nil, err
				}
				categoryId = &category.ID
			}
		}
		product, err := models.FindOrCreateProduct(ctx, tx, userId, name, categoryId)
		if err != nil {
			return nil, nil, err
		}
		return &product.ID, product, nil
	default:
		// Ambiguous without a correction stays unlinked; the raw label
		// is preserved on the receipt item for later reprocessing.
		return nil, nil, nil
	}
}

// DiscardDraft drops an awaiting draft. Discarding twice is a no-op;
// discarding a finalized draft is a conflict.
func DiscardDraft(ctx context.Context, db *gorm.DB, userId int, draftId string) error {
	logger := config.GetLogger()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draft, err := models.GetDraftForUpdate(ctx, tx, userId, draftId)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		if err != nil {
			return err
		}

		switch draft.Status {
		case models.DraftStatusDiscarded:
			return nil
		case models.DraftStatusFinalized:
			return utils.ErrorFinalizationConflict
		}

		if err := tx.WithContext(ctx).Model(&models.DraftReceipt{}).
			Where("id = ?", draft.ID).
			Update("status", models.DraftStatusDiscarded).Error; err != nil {
			return err
		}
		return models.PublishAudit(ctx, tx, userId, draft.ID, models.AuditReferenceDraft, models.AuditActionDiscarded, draft)
	})
	if err != nil {
		config.LogError(logger, "workflow", "DiscardDraft", "discard", draftId, err)
		return err
	}

	if err := config.RemoveRedisKey(draftCacheKey(draftId)); err != nil {
		config.LogError(logger, "workflow", "DiscardDraft", "drop draft cache", draftId, err)
	}
	return nil
}
