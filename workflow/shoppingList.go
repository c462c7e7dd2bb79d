package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"github.com/luxtick/luxtick_backend/utils"
	"gorm.io/gorm"
)

const defaultListName = "shopping"

// ShoppingListItemInput is one free-text entry for a list. The label is
// resolved against the catalog so later purchases can tick it off.
type ShoppingListItemInput struct {
	Label    string `json:"label" binding:"required"`
	Quantity string `json:"quantity"`
}

// CreateShoppingList creates a named list with the given items. An
// existing list with the same name is a conflict, not a merge.
func CreateShoppingList(ctx context.Context, db *gorm.DB, userId int, name string, items []ShoppingListItemInput) (*models.ShoppingList, error) {
	logger := config.GetLogger()
	name = listNameOrDefault(name)

	matcher := NewProductMatcher(db)
	index, err := matcher.IndexForUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	list := &models.ShoppingList{UserId: userId, Name: name}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(list).Error; err != nil {
			return err
		}
		for _, input := range items {
			if err := tx.WithContext(ctx).Create(buildListItem(list.ID, input, index)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "workflow", "CreateShoppingList", "create", name, err)
		return nil, err
	}
	return models.GetShoppingListByName(ctx, db, userId, name)
}

// UpdateShoppingList adds, removes or checks off items on an existing
// list. Removal and check-off match by case-insensitive label.
func UpdateShoppingList(ctx context.Context, db *gorm.DB, userId int, name string, add []ShoppingListItemInput, remove []string, check []string) (*models.ShoppingList, error) {
	logger := config.GetLogger()
	name = listNameOrDefault(name)

	list, err := models.GetShoppingListByName(ctx, db, userId, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	matcher := NewProductMatcher(db)
	index, err := matcher.IndexForUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, input := range add {
			if err := tx.WithContext(ctx).Create(buildListItem(list.ID, input, index)).Error; err != nil {
				return err
			}
		}
		for _, label := range remove {
			if err := tx.WithContext(ctx).
				Where("list_id = ? AND LOWER(label) = ?", list.ID, strings.ToLower(label)).
				Delete(&models.ShoppingListItem{}).Error; err != nil {
				return err
			}
		}
		for _, label := range check {
			if err := tx.WithContext(ctx).Model(&models.ShoppingListItem{}).
				Where("list_id = ? AND LOWER(label) = ?", list.ID, strings.ToLower(label)).
				Update("checked", true).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "workflow", "UpdateShoppingList", "update", name, err)
		return nil, err
	}
	return models.GetShoppingListByName(ctx, db, userId, name)
}

// GetShoppingList loads one list by name, or all list names when the
// name is empty and no default list exists.
func GetShoppingList(ctx context.Context, db *gorm.DB, userId int, name string) (*models.ShoppingList, error) {
	list, err := models.GetShoppingListByName(ctx, db, userId, listNameOrDefault(name))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetAllShoppingLists lists the user's lists without items.
func GetAllShoppingLists(ctx context.Context, db *gorm.DB, userId int) ([]models.ShoppingList, error) {
	return models.GetShoppingLists(ctx, db, userId)
}

// SuggestedItem is a replenishment suggestion with the cadence that
// produced it.
type SuggestedItem struct {
	ProductId    int     `json:"product_id"`
	ProductName  string  `json:"product_name"`
	TimesBought  int     `json:"times_bought"`
	IntervalDays float64 `json:"interval_days"`
	DaysSince    float64 `json:"days_since_last"`
}

// SuggestShoppingList proposes products that look due: bought at least
// three times, and not bought for longer than their usual interval.
func SuggestShoppingList(ctx context.Context, db *gorm.DB, userId int) ([]SuggestedItem, error) {
	type cadenceRow struct {
		ProductId   int
		ProductName string
		TimesBought int
		FirstDate   time.Time
		LastDate    time.Time
	}
	var rows []cadenceRow
	err := db.WithContext(ctx).
		Table("receipt_items ri").
		Select(`ri.product_id, p.name AS product_name, COUNT(DISTINCT r.date) AS times_bought,
			MIN(r.date) AS first_date, MAX(r.date) AS last_date`).
		Joins("JOIN receipts r ON r.id = ri.receipt_id").
		Joins("JOIN products p ON p.id = ri.product_id").
		Where("r.user_id = ? AND ri.product_id IS NOT NULL", userId).
		Group("ri.product_id, p.name").
		Having("times_bought >= 3").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	suggestions := []SuggestedItem{}
	for _, row := range rows {
		span := row.LastDate.Sub(row.FirstDate).Hours() / 24
		interval := span / float64(row.TimesBought-1)
		if interval <= 0 {
			continue
		}
		since := now.Sub(row.LastDate).Hours() / 24
		if since >= interval {
			suggestions = append(suggestions, SuggestedItem{
				ProductId:    row.ProductId,
				ProductName:  row.ProductName,
				TimesBought:  row.TimesBought,
				IntervalDays: interval,
				DaysSince:    since,
			})
		}
	}
	return suggestions, nil
}

func listNameOrDefault(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultListName
	}
	return strings.ToLower(name)
}

func buildListItem(listId int, input ShoppingListItemInput, index *AliasIndex) *models.ShoppingListItem {
	item := &models.ShoppingListItem{
		ListId:   listId,
		Label:    input.Label,
		Quantity: input.Quantity,
	}
	if outcome := index.Resolve(input.Label); outcome.Status == models.ResolutionMatched {
		item.ProductId = &outcome.ProductId
	}
	return item
}
