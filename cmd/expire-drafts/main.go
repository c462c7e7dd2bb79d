package main

import (
	"context"
	"fmt"
	"os"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/workflow"
)

// One-shot sweep of expired receipt drafts, for running as a scheduled
// job instead of the in-process sweeper.
func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	n, err := workflow.ExpireStaleDrafts(context.Background(), db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expire drafts: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("expired %d draft(s)\n", n)
}
