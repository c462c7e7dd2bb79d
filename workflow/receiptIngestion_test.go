package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/luxtick/luxtick_backend/models"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func TestBuildDraftLineItem_Defaults(t *testing.T) {
	idx := BuildAliasIndex(nil)

	item, err := buildDraftLineItem(models.ExtractedItem{
		RawLabel:  "PECHUGA POLLO",
		LineTotal: "4.50",
	}, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("missing quantity must default to 1, got %s", item.Quantity)
	}
	if !item.UnitPrice.Equal(decimal.RequireFromString("4.50")) {
		t.Fatalf("unit price must fall back to line total, got %s", item.UnitPrice)
	}
	if item.NormalizedLabel != "pechuga pollo" {
		t.Fatalf("unexpected normalized label %q", item.NormalizedLabel)
	}
	if item.ResolutionStatus != models.ResolutionNoMatch || item.ProductId != nil {
		t.Fatalf("empty catalog must yield NO_MATCH with no product link, got %s", item.ResolutionStatus)
	}
}

func TestBuildDraftLineItem_DerivesUnitPriceFromQuantity(t *testing.T) {
	idx := BuildAliasIndex(nil)

	item, err := buildDraftLineItem(models.ExtractedItem{
		RawLabel:  "LECHE ENTERA",
		Quantity:  strPtr("3"),
		LineTotal: "3.30",
	}, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !item.UnitPrice.Equal(decimal.RequireFromString("1.10")) {
		t.Fatalf("expected derived unit price 1.10, got %s", item.UnitPrice)
	}
}

func TestBuildDraftLineItem_MatchedLineCarriesProductLink(t *testing.T) {
	idx := BuildAliasIndex(testCatalog())

	item, err := buildDraftLineItem(models.ExtractedItem{
		RawLabel:  "PECHUGA POLLO 500G",
		Quantity:  strPtr("1"),
		UnitPrice: strPtr("4.50"),
		LineTotal: "4.50",
	}, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ResolutionStatus != models.ResolutionMatched {
		t.Fatalf("expected MATCHED, got %s", item.ResolutionStatus)
	}
	if item.ProductId == nil || *item.ProductId != 1 || item.ProductName != "Chicken Breast" {
		t.Fatalf("expected link to Chicken Breast, got %+v", item)
	}
}

func TestBuildDraftLineItem_BadLineTotal(t *testing.T) {
	idx := BuildAliasIndex(nil)
	if _, err := buildDraftLineItem(models.ExtractedItem{RawLabel: "PAN", LineTotal: "n/a"}, idx); err == nil {
		t.Fatal("expected error for unparseable line total")
	}
}

func TestCurrencyOrDefault(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"eur", "EUR"},
		{"USD", "USD"},
		{" gbp ", "GBP"},
		{"", "EUR"},
		{"euros", "EUR"},
		{"€", "EUR"},
	}
	for _, tc := range cases {
		if got := currencyOrDefault(tc.in); got != tc.expected {
			t.Fatalf("currencyOrDefault(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestBuildDraftSummary(t *testing.T) {
	draft := &models.DraftReceipt{
		ID:        "11111111-2222-3333-4444-555555555555",
		StoreName: "Mercadona",
		Date:      time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Total:     decimal.RequireFromString("6.70"),
		Currency:  "EUR",
	}
	productId := 1
	items := []models.DraftLineItem{
		{
			RawLabel:         "PECHUGA POLLO",
			Quantity:         decimal.NewFromInt(1),
			LineTotal:        decimal.RequireFromString("4.50"),
			ResolutionStatus: models.ResolutionMatched,
			ProductId:        &productId,
			ProductName:      "Chicken Breast",
		},
		{
			RawLabel:         "YOG NAT",
			Quantity:         decimal.NewFromInt(4),
			LineTotal:        decimal.RequireFromString("1.20"),
			ResolutionStatus: models.ResolutionAmbiguous,
			Candidates: []models.ResolutionOption{
				{ProductId: 2, ProductName: "Natural Yogurt", Score: 0.7},
				{ProductId: 3, ProductName: "Greek Yogurt", Score: 0.68},
			},
		},
		{
			RawLabel:         "DETERGENTE",
			Quantity:         decimal.NewFromInt(1),
			LineTotal:        decimal.RequireFromString("1.00"),
			ResolutionStatus: models.ResolutionNoMatch,
		},
	}
	warnings := []string{"line items add up to 6.70 but the receipt says 6.80"}

	summary := buildDraftSummary(draft, items, warnings)

	for _, want := range []string{
		"Receipt from Mercadona on 2026-08-20, total 6.70 EUR",
		"1. PECHUGA POLLO x1 = 4.50 → Chicken Breast",
		"2. YOG NAT x4 = 1.20 ⚠ could be: Natural Yogurt, Greek Yogurt",
		"3. DETERGENTE x1 = 1.00 ✗ new product",
		"Warning: line items add up to 6.70 but the receipt says 6.80",
		"2 item(s) need your confirmation.",
		"Confirm draft 11111111-2222-3333-4444-555555555555",
	} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestBuildDraftSummary_AllMatchedHasNoConfirmationCount(t *testing.T) {
	draft := &models.DraftReceipt{
		ID:        "draft-1",
		StoreName: "Lidl",
		Date:      time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Total:     decimal.RequireFromString("1.10"),
		Currency:  "EUR",
	}
	productId := 2
	items := []models.DraftLineItem{{
		RawLabel:         "LECHE ENTERA",
		Quantity:         decimal.NewFromInt(1),
		LineTotal:        decimal.RequireFromString("1.10"),
		ResolutionStatus: models.ResolutionMatched,
		ProductId:        &productId,
		ProductName:      "Whole Milk",
	}}

	summary := buildDraftSummary(draft, items, nil)
	if strings.Contains(summary, "need your confirmation") {
		t.Fatalf("fully matched draft must not ask for per-item confirmation:\n%s", summary)
	}
	if !strings.Contains(summary, "Confirm draft draft-1") {
		t.Fatalf("summary must still offer confirm/discard:\n%s", summary)
	}
}
