package workflow

import (
	"context"
	"fmt"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SpendingSummaryInput selects the window and grouping for a spending
// summary. GroupBy is "store", "category" or empty for the flat total.
type SpendingSummaryInput struct {
	Period    string `json:"period"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	GroupBy   string `json:"group_by"`
}

// SpendingBucket is one grouped total.
type SpendingBucket struct {
	Label    string          `json:"label"`
	Total    decimal.Decimal `json:"total"`
	Receipts int             `json:"receipts"`
}

// SpendingSummary is the answer to "how much did I spend".
type SpendingSummary struct {
	Total    decimal.Decimal  `json:"total"`
	Receipts int              `json:"receipts"`
	Buckets  []SpendingBucket `json:"buckets,omitempty"`
}

// GetSpendingSummary totals the user's receipts in the window,
// optionally grouped by store or product category.
func GetSpendingSummary(ctx context.Context, db *gorm.DB, userId int, input SpendingSummaryInput) (*SpendingSummary, error) {
	start, end, err := utils.ResolveDateRange(input.Period, input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}

	base := db.WithContext(ctx).Table("receipts r").Where("r.user_id = ?", userId)
	if start != nil {
		base = base.Where("r.date >= ?", *start)
	}
	if end != nil {
		base = base.Where("r.date <= ?", *end)
	}

	summary := &SpendingSummary{}
	type totalRow struct {
		Total    decimal.Decimal
		Receipts int
	}
	var overall totalRow
	if err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(r.total), 0) AS total, COUNT(*) AS receipts").
		Scan(&overall).Error; err != nil {
		return nil, err
	}
	summary.Total = overall.Total
	summary.Receipts = overall.Receipts

	switch input.GroupBy {
	case "":
		return summary, nil
	case "store":
		err = base.Session(&gorm.Session{}).
			Select("COALESCE(s.name, 'Unknown') AS label, SUM(r.total) AS total, COUNT(*) AS receipts").
			Joins("LEFT JOIN stores s ON s.id = r.store_id").
			Group("s.name").
			Order("total DESC").
			Scan(&summary.Buckets).Error
	case "category":
		// Category totals come from line items; uncategorized products
		// and unlinked lines land in the 'Other' bucket.
		err = base.Session(&gorm.Session{}).
			Select("COALESCE(c.name, 'Other') AS label, SUM(ri.line_total) AS total, COUNT(DISTINCT r.id) AS receipts").
			Joins("JOIN receipt_items ri ON ri.receipt_id = r.id").
			Joins("LEFT JOIN products p ON p.id = ri.product_id").
			Joins("LEFT JOIN categories c ON c.id = p.category_id").
			Group("c.name").
			Order("total DESC").
			Scan(&summary.Buckets).Error
	default:
		return nil, fmt.Errorf("%w: group_by must be store, category or empty", utils.ErrorValidationFailed)
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// FrequentPurchase is one product ranked by how often it was bought.
type FrequentPurchase struct {
	ProductId   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Times       int             `json:"times"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	LastPrice   decimal.Decimal `json:"last_price"`
}

// GetFrequentPurchases ranks the user's products by purchase count in
// the window.
func GetFrequentPurchases(ctx context.Context, db *gorm.DB, userId int, period string, limit int) ([]FrequentPurchase, error) {
	start, end, err := utils.ResolveDateRange(period, "", "")
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > config.SearchLimit {
		limit = 10
	}

	q := db.WithContext(ctx).
		Table("receipt_items ri").
		Select(`ri.product_id, p.name AS product_name, COUNT(*) AS times,
			SUM(ri.line_total) AS total_spent,
			SUBSTRING_INDEX(GROUP_CONCAT(ri.unit_price ORDER BY r.date DESC), ',', 1) AS last_price`).
		Joins("JOIN receipts r ON r.id = ri.receipt_id").
		Joins("JOIN products p ON p.id = ri.product_id").
		Where("r.user_id = ? AND ri.product_id IS NOT NULL", userId)
	if start != nil {
		q = q.Where("r.date >= ?", *start)
	}
	if end != nil {
		q = q.Where("r.date <= ?", *end)
	}

	var rows []FrequentPurchase
	if err := q.Group("ri.product_id, p.name").
		Order("times DESC, total_spent DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// StorePrice is one store's price point for a product.
type StorePrice struct {
	StoreName string          `json:"store_name"`
	LastPrice decimal.Decimal `json:"last_price"`
	MinPrice  decimal.Decimal `json:"min_price"`
	LastSeen  string          `json:"last_seen"`
}

// PriceComparison answers "where is X cheapest", per store.
type PriceComparison struct {
	ProductId   int          `json:"product_id"`
	ProductName string       `json:"product_name"`
	Stores      []StorePrice `json:"stores"`
}

// ComparePrices resolves the product and compares its unit price
// across every store it was bought at, cheapest last price first.
func ComparePrices(ctx context.Context, db *gorm.DB, userId int, productQuery string) (*PriceComparison, error) {
	history, err := GetProductHistory(ctx, db, userId, productQuery)
	if err != nil {
		return nil, err
	}

	var rows []StorePrice
	err = db.WithContext(ctx).
		Table("receipt_items ri").
		Select(`COALESCE(s.name, 'Unknown') AS store_name,
			SUBSTRING_INDEX(GROUP_CONCAT(ri.unit_price ORDER BY r.date DESC), ',', 1) AS last_price,
			MIN(ri.unit_price) AS min_price,
			MAX(r.date) AS last_seen`).
		Joins("JOIN receipts r ON r.id = ri.receipt_id").
		Joins("LEFT JOIN stores s ON s.id = r.store_id").
		Where("r.user_id = ? AND ri.product_id = ?", userId, history.ProductId).
		Group("s.name").
		Order("last_price ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return &PriceComparison{
		ProductId:   history.ProductId,
		ProductName: history.ProductName,
		Stores:      rows,
	}, nil
}
