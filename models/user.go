package models

import (
	"context"
	"time"

	"github.com/luxtick/luxtick_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	TelegramId int64     `gorm:"uniqueIndex;not null" json:"telegram_id" binding:"required"`
	Username   string    `gorm:"size:255" json:"username"`
	FirstName  string    `gorm:"size:255" json:"first_name"`
	Language   string    `gorm:"size:10;not null;default:en" json:"language"`
	Currency   string    `gorm:"size:3;not null;default:EUR" json:"currency"`
	Timezone   string    `gorm:"size:50;not null;default:UTC" json:"timezone"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DisplayName picks the friendliest available name for prompts and replies.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "User"
}

// EnsureUser upserts the user row for an inbound conversation turn.
// Registration is the transport's concern; this only keeps profile
// fields fresh so prompts carry current currency/timezone.
func EnsureUser(ctx context.Context, telegramId int64, username, firstName string) (*User, error) {
	db := config.GetDB()

	user := User{
		TelegramId: telegramId,
		Username:   username,
		FirstName:  firstName,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "first_name"}),
		}).
		Create(&user).Error
	if err != nil {
		return nil, err
	}

	// Re-read to get the authoritative row (id, preferences).
	var out User
	if err := db.WithContext(ctx).Where("telegram_id = ?", telegramId).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func GetUserByTelegramId(ctx context.Context, db *gorm.DB, telegramId int64) (*User, error) {
	var user User
	if err := db.WithContext(ctx).Where("telegram_id = ?", telegramId).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
