package utils

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"4.50", "4.5"},
		{"1,234.50", "1234.5"},
		{"  6.70 ", "6.7"},
		{"", "0"},
		{"0", "0"},
	}
	for _, tc := range cases {
		d, err := ParseDecimal(tc.in)
		if err != nil {
			t.Fatalf("ParseDecimal(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseDecimal(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}

	if _, err := ParseDecimal("abc"); err == nil {
		t.Fatal("expected error for non-numeric input")
	}
}

func TestTitleCase(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"chicken breast", "Chicken Breast"},
		{"CHICKEN BREAST", "Chicken Breast"},
		{"  leche entera ", "Leche Entera"},
	}
	for _, tc := range cases {
		if got := TitleCase(tc.in); got != tc.expected {
			t.Fatalf("TitleCase(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestNormalizeStoreName(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Mercadona", "mercadona"},
		{"MERCADONA ", "mercadona"},
		{"Sainsbury's", "sainsburys"},
		{"Sainsbury’s", "sainsburys"},
	}
	for _, tc := range cases {
		if got := NormalizeStoreName(tc.in); got != tc.expected {
			t.Fatalf("NormalizeStoreName(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestResolveDateRange_ExplicitDatesWinOverPeriod(t *testing.T) {
	start, end, err := ResolveDateRange("this_month", "2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start == nil || end == nil {
		t.Fatal("expected both bounds")
	}
	if start.Format("2006-01-02") != "2026-01-01" || end.Format("2006-01-02") != "2026-01-31" {
		t.Fatalf("explicit dates not honored: %v .. %v", start, end)
	}
}

func TestResolveDateRange_Periods(t *testing.T) {
	today := TruncateToDate(time.Now().UTC())

	start, end, err := ResolveDateRange("today", "", "")
	if err != nil || start == nil || end == nil {
		t.Fatalf("today: err=%v start=%v end=%v", err, start, end)
	}
	if !start.Equal(today) || !end.Equal(today) {
		t.Fatalf("today expected [%v, %v], got [%v, %v]", today, today, start, end)
	}

	start, end, err = ResolveDateRange("this_month", "", "")
	if err != nil {
		t.Fatalf("this_month: %v", err)
	}
	if start.Day() != 1 || start.Month() != today.Month() || !end.Equal(today) {
		t.Fatalf("this_month expected month start..today, got [%v, %v]", start, end)
	}

	start, end, err = ResolveDateRange("last_month", "", "")
	if err != nil {
		t.Fatalf("last_month: %v", err)
	}
	if start.Day() != 1 || !end.Before(time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("last_month expected previous month, got [%v, %v]", start, end)
	}
	if end.AddDate(0, 0, 1).Day() != 1 {
		t.Fatalf("last_month must end on the month's final day, got %v", end)
	}

	start, end, err = ResolveDateRange("this_week", "", "")
	if err != nil {
		t.Fatalf("this_week: %v", err)
	}
	if start.Weekday() != time.Monday || !end.Equal(today) {
		t.Fatalf("this_week must start on Monday, got [%v, %v]", start, end)
	}
}

func TestResolveDateRange_EmptyAndUnknown(t *testing.T) {
	start, end, err := ResolveDateRange("", "", "")
	if err != nil || start != nil || end != nil {
		t.Fatalf("empty period must mean no bounds: err=%v start=%v end=%v", err, start, end)
	}

	if _, _, err := ResolveDateRange("fortnight", "", ""); err == nil {
		t.Fatal("expected error for unknown period")
	}

	if _, _, err := ResolveDateRange("", "01/02/2026", ""); err == nil {
		t.Fatal("expected error for malformed start date")
	}
}

func TestDereferencePtr(t *testing.T) {
	v := "hello"
	if got := DereferencePtr(&v); got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
	if got := DereferencePtr[string](nil); got != "" {
		t.Fatalf("expected zero value, got %q", got)
	}
	if got := DereferencePtr[string](nil, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestNilIfEmpty(t *testing.T) {
	if NilIfEmpty("") != nil {
		t.Fatal("empty string must map to nil")
	}
	p := NilIfEmpty("x")
	if p == nil || *p != "x" {
		t.Fatalf("expected pointer to x, got %v", p)
	}
	if NilIfEmpty(0) != nil {
		t.Fatal("zero int must map to nil")
	}
}

func TestProcessValidationErrors(t *testing.T) {
	v := validator.New()
	v.SetTagName("binding")

	var payload struct {
		TelegramId int64  `json:"telegram_id" binding:"required"`
		MimeType   string `json:"mime_type" binding:"required"`
	}
	diags := ProcessValidationErrors(v.Struct(payload))
	if diags["TelegramId"] != "required" || diags["MimeType"] != "required" {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestProcessValidationErrors_MalformedBody(t *testing.T) {
	var payload struct {
		TelegramId int64 `json:"telegram_id" binding:"required"`
	}
	err := json.Unmarshal([]byte(`{"telegram_id": `), &payload)
	if err == nil {
		t.Fatal("expected a JSON syntax error")
	}

	// Must not panic on non-validator bind errors; gin hands these
	// straight from the JSON decoder.
	diags := ProcessValidationErrors(err)
	if diags["_body"] == "" {
		t.Fatalf("expected a generic body diagnostic, got %v", diags)
	}

	if diags := ProcessValidationErrors(errors.New("unexpected EOF")); diags["_body"] == "" {
		t.Fatalf("expected a generic body diagnostic, got %v", diags)
	}
}
