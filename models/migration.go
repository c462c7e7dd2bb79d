package models

import (
	"log"

	"github.com/luxtick/luxtick_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Store{},
		&Category{}, &Product{}, &ProductAlias{},
		&Receipt{}, &ReceiptItem{}, &DraftReceipt{},
		&Discount{},
		&ShoppingList{}, &ShoppingListItem{},
		&AuditEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
