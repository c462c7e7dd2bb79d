package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Re-runs product reconciliation over receipt items that never linked
// to a catalog product. Run it after the catalog has grown, or after
// matcher threshold changes.
func main() {
	userID := flag.Int("user-id", 0, "Optional: limit to one user")
	dryRun := flag.Bool("dry-run", false, "Report what would be linked without writing")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()
	ctx := context.Background()

	var userIds []int
	if *userID > 0 {
		userIds = []int{*userID}
	} else {
		var err error
		userIds, err = workflow.AllUserIds(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list users: %v\n", err)
			os.Exit(1)
		}
	}

	totalScanned, totalLinked := 0, 0
	for _, uid := range userIds {
		if *dryRun {
			n, err := countUnlinked(ctx, db, uid)
			if err != nil {
				logger.WithFields(logrus.Fields{"user_id": uid}).Error(err.Error())
				continue
			}
			logger.WithFields(logrus.Fields{"user_id": uid, "unlinked": n}).Info("dry run")
			totalScanned += n
			continue
		}

		stats, err := workflow.ReprocessUnlinkedItems(ctx, db, uid)
		if err != nil {
			logger.WithFields(logrus.Fields{"user_id": uid}).Error(err.Error())
			continue
		}
		logger.WithFields(logrus.Fields{
			"user_id": uid,
			"scanned": stats.Scanned,
			"linked":  stats.Linked,
		}).Info("reprocessed")
		totalScanned += stats.Scanned
		totalLinked += stats.Linked
	}

	fmt.Printf("done: scanned=%d linked=%d users=%d\n", totalScanned, totalLinked, len(userIds))
}

func countUnlinked(ctx context.Context, db *gorm.DB, uid int) (int, error) {
	var n int64
	err := db.WithContext(ctx).
		Table("receipt_items").
		Joins("JOIN receipts r ON r.id = receipt_items.receipt_id").
		Where("r.user_id = ? AND receipt_items.product_id IS NULL", uid).
		Count(&n).Error
	return int(n), err
}
