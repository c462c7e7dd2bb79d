package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"github.com/luxtick/luxtick_backend/utils"
	"gorm.io/gorm"
)

// RegisterDiscountInput describes an offer the user spotted. Product
// and store are free text and resolved against the catalog.
type RegisterDiscountInput struct {
	Description string `json:"description" binding:"required"`
	Type        string `json:"type" binding:"required,oneof=percentage fixed bogo"`
	Value       string `json:"value"`
	ProductName string `json:"product_name"`
	StoreName   string `json:"store_name"`
	ValidUntil  string `json:"valid_until" binding:"required"`
}

// RegisterDiscount stores a discount, linking it to a catalog product
// when the name resolves.
func RegisterDiscount(ctx context.Context, db *gorm.DB, userId int, input RegisterDiscountInput) (*models.Discount, error) {
	logger := config.GetLogger()

	validUntil, err := utils.ParsePurchaseDate(input.ValidUntil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorValidationFailed, err)
	}
	// Expiry covers the whole final day.
	validUntil = validUntil.Add(24*time.Hour - time.Second)

	value, err := utils.ParseDecimal(input.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid value %q", utils.ErrorValidationFailed, input.Value)
	}

	discount := &models.Discount{
		UserId:      userId,
		Description: input.Description,
		Type:        models.DiscountType(input.Type),
		Value:       value,
		ValidFrom:   utils.TruncateToDate(time.Now().UTC()),
		ValidUntil:  validUntil,
	}

	if input.ProductName != "" {
		matcher := NewProductMatcher(db)
		index, err := matcher.IndexForUser(ctx, userId)
		if err != nil {
			return nil, err
		}
		if outcome := index.Resolve(input.ProductName); outcome.Status == models.ResolutionMatched {
			discount.ProductId = &outcome.ProductId
		}
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.StoreName != "" {
			store, err := models.FindOrCreateStore(ctx, tx, input.StoreName)
			if err != nil {
				return err
			}
			discount.StoreId = &store.ID
		}
		return tx.WithContext(ctx).Create(discount).Error
	})
	if err != nil {
		config.LogError(logger, "workflow", "RegisterDiscount", "create", input.Description, err)
		return nil, err
	}
	return discount, nil
}

// GetActiveDiscounts lists the user's currently valid discounts.
func GetActiveDiscounts(ctx context.Context, db *gorm.DB, userId int) ([]models.Discount, error) {
	return models.GetActiveDiscounts(ctx, db, userId, time.Now().UTC())
}
