package utils

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func ProcessValidationErrors(err error) map[string]string {

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		// Bind failures before validation (malformed JSON, type
		// mismatches) carry no field information.
		return map[string]string{"_body": "invalid request body"}
	}

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	keys := make(map[T]bool)
	list := []T{}
	for _, entry := range slice {
		if _, ok := keys[entry]; !ok {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(defaults) > 0 {
		return defaults[0]
	}
	var zero T
	return zero
}

func NilIfEmpty[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

func GenerateUniqueFilename() string {
	timestamp := time.Now().UnixNano()
	random := rand.Intn(1000)
	uniqueFilename := fmt.Sprintf("%d_%d", timestamp, random)
	return uniqueFilename
}

// TitleCase converts "chicken breast" / "CHICKEN BREAST" to "Chicken Breast".
func TitleCase(s string) string {
	return cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(s)))
}

func ParseDecimal(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(cleaned)
}

// ParsePurchaseDate parses an ISO date (YYYY-MM-DD), defaulting to today.
func ParsePurchaseDate(dateStr string) (time.Time, error) {
	if strings.TrimSpace(dateStr) == "" {
		return TruncateToDate(time.Now().UTC()), nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(dateStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", dateStr)
	}
	return t, nil
}

func TruncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ResolveDateRange converts a period keyword or explicit ISO dates to a
// [start, end] range. Both bounds may be nil (no restriction).
// Explicit dates win over the period keyword.
func ResolveDateRange(period string, startDate string, endDate string) (*time.Time, *time.Time, error) {
	if startDate != "" || endDate != "" {
		var start, end *time.Time
		if startDate != "" {
			t, err := time.Parse("2006-01-02", startDate)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid start_date %q", startDate)
			}
			start = &t
		}
		if endDate != "" {
			t, err := time.Parse("2006-01-02", endDate)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid end_date %q", endDate)
			}
			end = &t
		}
		return start, end, nil
	}

	today := TruncateToDate(time.Now().UTC())
	switch period {
	case "today":
		return &today, &today, nil
	case "this_week":
		weekday := int(today.Weekday())
		// Monday-based week, matching receipts from European stores.
		if weekday == 0 {
			weekday = 7
		}
		start := today.AddDate(0, 0, -(weekday - 1))
		return &start, &today, nil
	case "this_month":
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return &start, &today, nil
	case "last_month":
		firstOfThisMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		lastOfPrev := firstOfThisMonth.AddDate(0, 0, -1)
		start := time.Date(lastOfPrev.Year(), lastOfPrev.Month(), 1, 0, 0, 0, 0, time.UTC)
		return &start, &lastOfPrev, nil
	case "this_year":
		start := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return &start, &today, nil
	case "last_3_months":
		start := today.AddDate(0, 0, -90)
		return &start, &today, nil
	case "last_year":
		start := today.AddDate(0, 0, -365)
		return &start, &today, nil
	case "":
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown period %q", period)
}

// NormalizeStoreName dedups store rows ("Mercadona" == "MERCADONA ").
func NormalizeStoreName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "‘", "")
	s = strings.ReplaceAll(s, "’", "")
	return s
}
