package models

import (
	"context"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Product is the user-scoped canonical catalog entry that raw receipt
// labels resolve to. Aliases live in product_aliases; each alias has
// been seen on a real receipt and resolved to this product.
type Product struct {
	ID         int            `gorm:"primary_key" json:"id"`
	UserId     int            `gorm:"index:idx_product_user_name,unique;not null" json:"user_id"`
	Name       string         `gorm:"size:255;index:idx_product_user_name,unique;not null" json:"name" binding:"required"`
	CategoryId *int           `gorm:"index" json:"category_id"`
	Category   *Category      `json:"category,omitempty"`
	Aliases    []ProductAlias `json:"aliases,omitempty"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductAlias records a normalized raw label that resolved to a
// product. The unique index on (user_id, alias) makes alias learning
// idempotent: re-learning the same label is a no-op.
type ProductAlias struct {
	ID        int    `gorm:"primary_key" json:"id"`
	UserId    int    `gorm:"index:idx_alias_user_alias,unique;not null" json:"user_id"`
	ProductId int    `gorm:"index;not null" json:"product_id"`
	Alias     string `gorm:"size:255;index:idx_alias_user_alias,unique;not null" json:"alias"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
}

// GetProductsWithAliases loads the user's full catalog for matcher
// index construction.
func GetProductsWithAliases(ctx context.Context, db *gorm.DB, userId int) ([]Product, error) {
	var products []Product
	err := db.WithContext(ctx).
		Preload("Aliases").
		Where("user_id = ?", userId).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// LearnAlias persists a normalized label as an alias of productId.
// A duplicate-key error means another path already learned it.
func LearnAlias(ctx context.Context, tx *gorm.DB, userId int, productId int, alias string) error {
	if alias == "" {
		return nil
	}
	record := ProductAlias{UserId: userId, ProductId: productId, Alias: alias}
	err := tx.WithContext(ctx).Create(&record).Error
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return nil
	}
	return err
}

// FindOrCreateProduct returns the user's product with the given
// canonical name, creating it when absent.
func FindOrCreateProduct(ctx context.Context, tx *gorm.DB, userId int, name string, categoryId *int) (*Product, error) {
	var product Product
	err := tx.WithContext(ctx).
		Where("user_id = ? AND name = ?", userId, name).
		Take(&product).Error
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	product = Product{UserId: userId, Name: name, CategoryId: categoryId}
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		var mysqlErr *mysqlDriver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			err = tx.WithContext(ctx).
				Where("user_id = ? AND name = ?", userId, name).
				Take(&product).Error
			if err != nil {
				return nil, err
			}
			return &product, nil
		}
		return nil, err
	}
	return &product, nil
}
