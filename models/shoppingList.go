package models

import (
	"context"

	"gorm.io/gorm"
)

// ShoppingList is a named list of items to buy. A user keeps at most
// one list per name; item order is the order of insertion.
type ShoppingList struct {
	ID     int    `gorm:"primary_key" json:"id"`
	UserId int    `gorm:"index:idx_list_user_name,unique;not null" json:"user_id"`
	Name   string `gorm:"size:255;index:idx_list_user_name,unique;not null" json:"name" binding:"required"`

	Items []ShoppingListItem `json:"items,omitempty"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

// ShoppingListItem is one entry. ProductId is set when the label
// resolved against the catalog; Checked marks bought items.
type ShoppingListItem struct {
	ID        int      `gorm:"primary_key" json:"id"`
	ListId    int      `gorm:"index;not null" json:"list_id"`
	ProductId *int     `gorm:"index" json:"product_id"`
	Product   *Product `json:"product,omitempty"`
	Label     string   `gorm:"size:255;not null" json:"label"`
	Quantity  string   `gorm:"size:64" json:"quantity"`
	Checked   bool     `gorm:"default:false" json:"checked"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
}

// GetShoppingListByName loads a list with items, scoped to the user.
func GetShoppingListByName(ctx context.Context, db *gorm.DB, userId int, name string) (*ShoppingList, error) {
	var list ShoppingList
	err := db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("user_id = ? AND name = ?", userId, name).
		Take(&list).Error
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// GetShoppingLists returns all of the user's lists without items.
func GetShoppingLists(ctx context.Context, db *gorm.DB, userId int) ([]ShoppingList, error) {
	var lists []ShoppingList
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("name ASC").
		Find(&lists).Error
	if err != nil {
		return nil, err
	}
	return lists, nil
}
