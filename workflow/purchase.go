package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"github.com/luxtick/luxtick_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseRow is one purchased line with its receipt context, the shape
// every purchase-facing tool returns.
type PurchaseRow struct {
	ReceiptId   int             `json:"receipt_id"`
	Date        time.Time       `json:"date"`
	StoreName   string          `json:"store_name"`
	RawLabel    string          `json:"raw_label"`
	ProductName *string         `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// SearchPurchasesInput is the filter set for purchase searches. All
// fields are optional; empty input returns the most recent purchases.
type SearchPurchasesInput struct {
	Query     string `json:"query"`
	Period    string `json:"period"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StoreName string `json:"store_name"`
	Limit     int    `json:"limit"`
}

func purchaseBaseQuery(ctx context.Context, db *gorm.DB, userId int) *gorm.DB {
	return db.WithContext(ctx).
		Table("receipt_items AS ri").
		Select(`r.id AS receipt_id, r.date, s.name AS store_name, ri.raw_label,
			p.name AS product_name, ri.quantity, ri.unit_price, ri.line_total`).
		Joins("JOIN receipts r ON r.id = ri.receipt_id").
		Joins("LEFT JOIN stores s ON s.id = r.store_id").
		Joins("LEFT JOIN products p ON p.id = ri.product_id").
		Where("r.user_id = ?", userId)
}

// SearchPurchases finds purchased items by label or product name,
// optionally restricted to a period and a store.
func SearchPurchases(ctx context.Context, db *gorm.DB, userId int, input SearchPurchasesInput) ([]PurchaseRow, error) {
	start, end, err := utils.ResolveDateRange(input.Period, input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}

	q := purchaseBaseQuery(ctx, db, userId)
	if input.Query != "" {
		like := "%" + input.Query + "%"
		q = q.Where("ri.raw_label LIKE ? OR p.name LIKE ?", like, like)
	}
	if start != nil {
		q = q.Where("r.date >= ?", *start)
	}
	if end != nil {
		q = q.Where("r.date <= ?", *end)
	}
	if input.StoreName != "" {
		q = q.Where("s.normalized_name = ?", utils.NormalizeStoreName(input.StoreName))
	}

	limit := input.Limit
	if limit <= 0 || limit > config.SearchLimit {
		limit = config.SearchLimit
	}

	var rows []PurchaseRow
	if err := q.Order("r.date DESC, ri.id DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ProductHistory is the purchase trail of one catalog product.
type ProductHistory struct {
	ProductId   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Purchases   []PurchaseRow   `json:"purchases"`
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
}

// GetProductHistory resolves the query against the catalog the same way
// receipt lines are resolved, then lists every purchase of the winner
// with price statistics.
func GetProductHistory(ctx context.Context, db *gorm.DB, userId int, query string) (*ProductHistory, error) {
	matcher := NewProductMatcher(db)
	index, err := matcher.IndexForUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	outcome := index.Resolve(query)
	productId := outcome.ProductId
	productName := outcome.ProductName
	if outcome.Status != models.ResolutionMatched {
		if len(outcome.Candidates) == 0 {
			return nil, fmt.Errorf("no product matches %q", query)
		}
		// Best effort: take the top candidate rather than refusing.
		productId = outcome.Candidates[0].ProductId
		productName = outcome.Candidates[0].ProductName
	}

	var rows []PurchaseRow
	err = purchaseBaseQuery(ctx, db, userId).
		Where("ri.product_id = ?", productId).
		Order("r.date DESC, ri.id DESC").
		Limit(config.SearchLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	history := &ProductHistory{
		ProductId:   productId,
		ProductName: productName,
		Purchases:   rows,
	}
	if len(rows) > 0 {
		sum := decimal.Zero
		history.MinPrice = rows[0].UnitPrice
		history.MaxPrice = rows[0].UnitPrice
		for _, row := range rows {
			sum = sum.Add(row.UnitPrice)
			if row.UnitPrice.LessThan(history.MinPrice) {
				history.MinPrice = row.UnitPrice
			}
			if row.UnitPrice.GreaterThan(history.MaxPrice) {
				history.MaxPrice = row.UnitPrice
			}
		}
		history.AvgPrice = sum.DivRound(decimal.NewFromInt(int64(len(rows))), 2)
	}
	return history, nil
}

// ManualPurchaseInput records a purchase the user types in directly,
// with no receipt photo involved.
type ManualPurchaseInput struct {
	ProductName string `json:"product_name" binding:"required"`
	Price       string `json:"price" binding:"required"`
	Quantity    string `json:"quantity"`
	StoreName   string `json:"store_name"`
	Date        string `json:"date"`
}

// AddManualPurchase creates a one-line receipt for a manual entry. The
// product is resolved through the matcher first so manual entries feed
// the same catalog as photographed receipts.
func AddManualPurchase(ctx context.Context, db *gorm.DB, userId int, input ManualPurchaseInput) (*models.Receipt, error) {
	logger := config.GetLogger()

	price, err := utils.ParseDecimal(input.Price)
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("%w: invalid price %q", utils.ErrorValidationFailed, input.Price)
	}
	qty := decimal.NewFromInt(1)
	if input.Quantity != "" {
		parsed, err := utils.ParseDecimal(input.Quantity)
		if err != nil || !parsed.IsPositive() {
			return nil, fmt.Errorf("%w: invalid quantity %q", utils.ErrorValidationFailed, input.Quantity)
		}
		qty = parsed
	}
	date, err := utils.ParsePurchaseDate(input.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorValidationFailed, err)
	}

	matcher := NewProductMatcher(db)
	index, err := matcher.IndexForUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	outcome := index.Resolve(input.ProductName)

	var receipt *models.Receipt
	productCreated := false
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var productId int
		if outcome.Status == models.ResolutionMatched {
			productId = outcome.ProductId
		} else {
			product, err := models.FindOrCreateProduct(ctx, tx, userId, utils.TitleCase(input.ProductName), nil)
			if err != nil {
				return err
			}
			productId = product.ID
			productCreated = true
			if err := models.PublishAudit(ctx, tx, userId, fmt.Sprint(product.ID), models.AuditReferenceProduct, models.AuditActionCreated, product); err != nil {
				return err
			}
		}
		if err := models.LearnAlias(ctx, tx, userId, productId, NormalizeLabel(input.ProductName)); err != nil {
			return err
		}

		var storeId *int
		if input.StoreName != "" {
			store, err := models.FindOrCreateStore(ctx, tx, input.StoreName)
			if err != nil {
				return err
			}
			storeId = &store.ID
		}

		lineTotal := price.Mul(qty).Round(2)
		receipt = &models.Receipt{
			UserId:   userId,
			StoreId:  storeId,
			Date:     date,
			Total:    lineTotal,
			Currency: "EUR",
		}
		if err := tx.WithContext(ctx).Create(receipt).Error; err != nil {
			return err
		}

		item := models.ReceiptItem{
			ReceiptId: receipt.ID,
			ProductId: &productId,
			RawLabel:  input.ProductName,
			Quantity:  qty,
			UnitPrice: price,
			LineTotal: lineTotal,
		}
		if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
			return err
		}
		receipt.Items = append(receipt.Items, item)

		return models.PublishAudit(ctx, tx, userId, fmt.Sprint(receipt.ID), models.AuditReferenceReceipt, models.AuditActionFinalized, receipt)
	})
	if err != nil {
		config.LogError(logger, "workflow", "AddManualPurchase", "create", input.ProductName, err)
		return nil, err
	}

	if productCreated {
		matcher.Invalidate(userId)
	}
	return receipt, nil
}

// GetReceipt returns one of the user's receipts with items and store.
func GetReceipt(ctx context.Context, db *gorm.DB, userId int, receiptId int) (*models.Receipt, error) {
	receipt, err := models.GetReceiptForUser(ctx, db, userId, receiptId)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
