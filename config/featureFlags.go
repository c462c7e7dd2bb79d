package config

import (
	"os"
	"strings"
)

// ItemIntelligenceEnabled gates the extra model call that proposes an
// English canonical name, aliases and a category path for brand-new
// products. The matcher works without it; new products just keep the
// receipt wording as their canonical name.
//
// Set via env:
// - ENABLE_ITEM_INTELLIGENCE=true
func ItemIntelligenceEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ENABLE_ITEM_INTELLIGENCE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ArchiveReceiptImages controls whether original receipt photos are
// written to cloud storage during ingestion.
//
// Set via env:
// - ARCHIVE_RECEIPT_IMAGES=true
func ArchiveReceiptImages() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ARCHIVE_RECEIPT_IMAGES")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
