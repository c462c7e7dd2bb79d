package workflow

import (
	"strings"
	"testing"
)

func TestValidateAnalyticsQuery_RejectsMutations(t *testing.T) {
	cases := []string{
		"INSERT INTO receipts VALUES (1)",
		"UPDATE products SET name = 'x' WHERE user_id = @userId",
		"DELETE FROM receipts",
		"DROP TABLE receipts",
		"SELECT * FROM receipts; DROP TABLE receipts",
		"SELECT * FROM information_schema.tables",
		"SELECT * FROM mysql.user",
		"SELECT name INTO OUTFILE '/tmp/x' FROM products",
		"",
	}
	for _, q := range cases {
		if _, err := ValidateAnalyticsQuery(q); err == nil {
			t.Fatalf("expected rejection for %q", q)
		}
	}
}

func TestValidateAnalyticsQuery_AllowsColumnsContainingKeywords(t *testing.T) {
	// created_at contains "create" and stock contains "lock"; word
	// boundaries must keep both legal.
	q := "SELECT created_at, stock FROM receipt_items WHERE user_id = @userId"
	validated, err := ValidateAnalyticsQuery(q)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if !strings.Contains(validated, "created_at") {
		t.Fatalf("validated query lost columns: %q", validated)
	}
}

func TestValidateAnalyticsQuery_InjectsLimit(t *testing.T) {
	validated, err := ValidateAnalyticsQuery("SELECT name FROM products WHERE user_id = @userId")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(validated, "LIMIT 50") {
		t.Fatalf("expected injected LIMIT 50, got %q", validated)
	}
}

func TestValidateAnalyticsQuery_ClampsOversizedLimit(t *testing.T) {
	validated, err := ValidateAnalyticsQuery("SELECT name FROM products WHERE user_id = @userId LIMIT 5000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(validated, "5000") || !strings.Contains(validated, "LIMIT 50") {
		t.Fatalf("expected clamp to LIMIT 50, got %q", validated)
	}
}

func TestValidateAnalyticsQuery_KeepsSmallLimit(t *testing.T) {
	validated, err := ValidateAnalyticsQuery("SELECT name FROM products WHERE user_id = @userId LIMIT 5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(validated, "LIMIT 5") || strings.Contains(validated, "LIMIT 50") {
		t.Fatalf("small limit must be preserved, got %q", validated)
	}
}

func TestValidateAnalyticsQuery_AllowsWithAndTrailingSemicolon(t *testing.T) {
	q := "WITH spend AS (SELECT product_id, SUM(line_total) AS total FROM receipt_items WHERE user_id = @userId GROUP BY product_id) SELECT * FROM spend;"
	if _, err := ValidateAnalyticsQuery(q); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}
