package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ExportSpendingReport builds an xlsx of every purchase in the window,
// uploads it to object storage and returns the download URL.
func ExportSpendingReport(ctx context.Context, db *gorm.DB, userId int, period string, startDate string, endDate string) (string, error) {
	logger := config.GetLogger()

	start, end, err := utils.ResolveDateRange(period, startDate, endDate)
	if err != nil {
		return "", err
	}

	q := purchaseBaseQuery(ctx, db, userId)
	if start != nil {
		q = q.Where("r.date >= ?", *start)
	}
	if end != nil {
		q = q.Where("r.date <= ?", *end)
	}
	var rows []PurchaseRow
	if err := q.Order("r.date ASC, ri.id ASC").Scan(&rows).Error; err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Purchases"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Date", "Store", "Item", "Product", "Qty", "Unit Price", "Line Total"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		values := []interface{}{
			row.Date.Format("2006-01-02"),
			row.StoreName,
			row.RawLabel,
			utils.DereferencePtr(row.ProductName),
			row.Quantity.InexactFloat64(),
			row.UnitPrice.InexactFloat64(),
			row.LineTotal.InexactFloat64(),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		config.LogError(logger, "workflow", "ExportSpendingReport", "write xlsx", userId, err)
		return "", err
	}

	filename := fmt.Sprintf("spending-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	url, err := utils.UploadReport(ctx, userId, filename, buf)
	if err != nil {
		config.LogError(logger, "workflow", "ExportSpendingReport", "upload", filename, err)
		return "", err
	}
	return url, nil
}
