package models

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Category is a self-referencing hierarchy ("Food > Poultry > Chicken").
type Category struct {
	ID       int    `gorm:"primary_key" json:"id"`
	Name     string `gorm:"size:255;not null" json:"name" binding:"required"`
	ParentId *int   `gorm:"index" json:"parent_id"`
}

// EnsureCategoryPath walks a " > " separated path, creating missing
// levels, and returns the leaf category. Used by item intelligence when
// a brand-new product arrives with a proposed category.
func EnsureCategoryPath(ctx context.Context, tx *gorm.DB, path string) (*Category, error) {
	segments := []string{}
	for _, seg := range strings.Split(path, ">") {
		if s := strings.TrimSpace(seg); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return nil, errors.New("category path is empty")
	}

	var parentId *int
	var current Category
	for _, name := range segments {
		q := tx.WithContext(ctx).Where("name = ?", name)
		if parentId == nil {
			q = q.Where("parent_id IS NULL")
		} else {
			q = q.Where("parent_id = ?", *parentId)
		}

		err := q.Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			current = Category{Name: name, ParentId: parentId}
			if err := tx.WithContext(ctx).Create(&current).Error; err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}

		id := current.ID
		parentId = &id
	}
	return &current, nil
}
