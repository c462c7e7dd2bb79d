package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/luxtick/luxtick_backend/config"
)

const (
	analyticsQueryTimeout = 10 * time.Second
	analyticsRowLimit     = 50
)

// Word-bounded so column names like created_at never trip the filter.
var forbiddenSQLRe = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|replace|grant|revoke|lock|call|load|outfile|into|information_schema|performance_schema)\b|mysql\.`)

var limitClauseRe = regexp.MustCompile(`(?i)\blimit\s+(\d+)`)

// ValidateAnalyticsQuery enforces the envelope for model-generated SQL:
// a single SELECT statement, no mutating or metadata keywords, and a
// row limit at or below the cap (injected when missing).
func ValidateAnalyticsQuery(query string) (string, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if trimmed == "" {
		return "", errors.New("query is empty")
	}
	if strings.Contains(trimmed, ";") {
		return "", errors.New("only a single statement is allowed")
	}

	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return "", errors.New("only SELECT queries are allowed")
	}
	if m := forbiddenSQLRe.FindString(trimmed); m != "" {
		return "", fmt.Errorf("forbidden keyword %q", strings.ToLower(m))
	}

	if m := limitClauseRe.FindStringSubmatch(trimmed); m != nil {
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		if n > analyticsRowLimit {
			trimmed = limitClauseRe.ReplaceAllString(trimmed, fmt.Sprintf("LIMIT %d", analyticsRowLimit))
		}
	} else {
		trimmed = trimmed + fmt.Sprintf(" LIMIT %d", analyticsRowLimit)
	}
	return trimmed, nil
}

// RunAnalyticsQuery executes a validated read-only query on the
// read-only connection under a hard timeout. The caller's user id is
// bound as @userId so queries can scope themselves.
func RunAnalyticsQuery(ctx context.Context, userId int, query string) ([]map[string]interface{}, error) {
	db := config.GetReadOnlyDB()
	if db == nil {
		return nil, errors.New("analytics queries are disabled")
	}

	validated, err := ValidateAnalyticsQuery(query)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, analyticsQueryTimeout)
	defer cancel()

	var rows []map[string]interface{}
	if err := db.WithContext(ctx).Raw(validated, map[string]interface{}{"userId": userId}).Scan(&rows).Error; err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "workflow", "RunAnalyticsQuery", "execute", validated, err)
		return nil, err
	}
	return rows, nil
}
