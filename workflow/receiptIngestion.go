package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"github.com/luxtick/luxtick_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// totalsTolerance is how far the sum of line totals may drift from the
// printed subtotal before the draft summary carries a warning. Covers
// rounding on the printed receipt, not extraction errors.
var totalsTolerance = decimal.NewFromFloat(0.05)

// ReceiptExtractor turns a receipt photo into structured data. The
// vision-model client implements it; tests substitute fakes.
type ReceiptExtractor interface {
	ExtractReceipt(ctx context.Context, image []byte) (*models.ExtractedReceipt, error)
}

var extractionValidator = newBindingValidator()

func newBindingValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// ReceiptPipeline runs a receipt photo through extraction, validation
// and reconciliation, and parks the result as a draft awaiting the
// user's confirmation.
type ReceiptPipeline struct {
	DB        *gorm.DB
	Extractor ReceiptExtractor
	Matcher   *ProductMatcher
}

func NewReceiptPipeline(db *gorm.DB, extractor ReceiptExtractor) *ReceiptPipeline {
	return &ReceiptPipeline{
		DB:        db,
		Extractor: extractor,
		Matcher:   NewProductMatcher(db),
	}
}

// DraftResult is what a successful pipeline run hands back to the
// conversation layer.
type DraftResult struct {
	Draft    *models.DraftReceipt   `json:"draft"`
	Items    []models.DraftLineItem `json:"items"`
	Warnings []string               `json:"warnings,omitempty"`
	Summary  string                 `json:"summary"`
}

// IngestReceiptImage runs the full pipeline. Extraction and validation
// failures abort the run before anything is persisted; per-line
// reconciliation never fails the whole receipt.
func (p *ReceiptPipeline) IngestReceiptImage(ctx context.Context, userId int, image []byte) (*DraftResult, error) {
	logger := config.GetLogger()

	extracted, err := p.Extractor.ExtractReceipt(ctx, image)
	if err != nil {
		config.LogError(logger, "workflow", "IngestReceiptImage", "extract", userId, err)
		return nil, err
	}

	if err := extractionValidator.Struct(extracted); err != nil {
		fields := utils.ProcessValidationErrors(err)
		config.LogError(logger, "workflow", "IngestReceiptImage", "validate", fields, err)
		return nil, fmt.Errorf("%w: %v", utils.ErrorValidationFailed, fields)
	}

	date, err := utils.ParsePurchaseDate(extracted.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorValidationFailed, err)
	}
	total, err := utils.ParseDecimal(extracted.Total)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid total %q", utils.ErrorValidationFailed, extracted.Total)
	}

	index, err := p.Matcher.IndexForUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	items := make([]models.DraftLineItem, 0, len(extracted.Items))
	lineSum := decimal.Zero
	for _, raw := range extracted.Items {
		item, err := buildDraftLineItem(raw, index)
		if err != nil {
			return nil, err
		}
		lineSum = lineSum.Add(item.LineTotal)
		items = append(items, item)
	}

	var warnings []string
	reference := total
	if extracted.Subtotal != nil {
		if sub, err := utils.ParseDecimal(*extracted.Subtotal); err == nil && !sub.IsZero() {
			reference = sub
		}
	}
	if lineSum.Sub(reference).Abs().GreaterThan(totalsTolerance) {
		warnings = append(warnings, fmt.Sprintf(
			"line items add up to %s but the receipt says %s", lineSum.StringFixed(2), reference.StringFixed(2)))
	}

	draft := &models.DraftReceipt{
		ID:        uuid.NewString(),
		UserId:    userId,
		Status:    models.DraftStatusAwaitingConfirmation,
		StoreName: utils.TitleCase(extracted.StoreName),
		Date:      date,
		Total:     total,
		Currency:  currencyOrDefault(extracted.Currency),
		ExpiresAt: time.Now().UTC().Add(config.GetDraftTTL()),
	}
	if extracted.Subtotal != nil {
		if sub, err := utils.ParseDecimal(*extracted.Subtotal); err == nil {
			draft.Subtotal = decimal.NewNullDecimal(sub)
		}
	}
	if extracted.Tax != nil {
		if tax, err := utils.ParseDecimal(*extracted.Tax); err == nil {
			draft.Tax = decimal.NewNullDecimal(tax)
		}
	}

	payload, err := utils.MarshalToJSON(items)
	if err != nil {
		return nil, err
	}
	draft.Payload = []byte(payload)

	if config.ArchiveReceiptImages() {
		url, err := utils.UploadReceiptImage(ctx, userId, image)
		if err != nil {
			// Archiving is best effort; the draft stands without the image.
			config.LogError(logger, "workflow", "IngestReceiptImage", "archive image", userId, err)
		} else {
			draft.ImageUrl = url
		}
	}

	if err := p.DB.WithContext(ctx).Create(draft).Error; err != nil {
		config.LogError(logger, "workflow", "IngestReceiptImage", "persist draft", draft.ID, err)
		return nil, err
	}
	if err := config.SetRedisObject(draftCacheKey(draft.ID), draft, config.GetDraftTTL()); err != nil {
		config.LogError(logger, "workflow", "IngestReceiptImage", "cache draft", draft.ID, err)
	}

	result := &DraftResult{
		Draft:    draft,
		Items:    items,
		Warnings: warnings,
	}
	result.Summary = buildDraftSummary(draft, items, warnings)
	return result, nil
}

func buildDraftLineItem(raw models.ExtractedItem, index *AliasIndex) (models.DraftLineItem, error) {
	lineTotal, err := utils.ParseDecimal(raw.LineTotal)
	if err != nil {
		return models.DraftLineItem{}, fmt.Errorf("%w: invalid line total %q", utils.ErrorValidationFailed, raw.LineTotal)
	}

	qty := decimal.NewFromInt(1)
	if raw.Quantity != nil {
		parsed, err := utils.ParseDecimal(*raw.Quantity)
		if err != nil || parsed.IsZero() {
			parsed = decimal.NewFromInt(1)
		}
		qty = parsed
	}

	unitPrice := lineTotal
	if raw.UnitPrice != nil {
		if parsed, err := utils.ParseDecimal(*raw.UnitPrice); err == nil && !parsed.IsZero() {
			unitPrice = parsed
		}
	} else if !qty.IsZero() {
		unitPrice = lineTotal.DivRound(qty, 2)
	}

	outcome := index.Resolve(raw.RawLabel)
	item := models.DraftLineItem{
		RawLabel:         raw.RawLabel,
		NormalizedLabel:  NormalizeLabel(raw.RawLabel),
		Quantity:         qty,
		UnitPrice:        unitPrice,
		LineTotal:        lineTotal,
		ResolutionStatus: outcome.Status,
		Score:            outcome.Score,
		Candidates:       outcome.Candidates,
	}
	if outcome.Status == models.ResolutionMatched {
		item.ProductId = &outcome.ProductId
		item.ProductName = outcome.ProductName
	}
	return item, nil
}

func currencyOrDefault(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if len(c) != 3 || strings.ContainsFunc(c, func(r rune) bool { return r < 'A' || r > 'Z' }) {
		return "EUR"
	}
	return c
}

func draftCacheKey(draftId string) string {
	return "draft:" + draftId
}

// buildDraftSummary renders the draft for the chat: one line per item
// with a marker for anything that still needs the user's attention.
func buildDraftSummary(draft *models.DraftReceipt, items []models.DraftLineItem, warnings []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Receipt from %s on %s, total %s %s\n",
		draft.StoreName, draft.Date.Format("2006-01-02"), draft.Total.StringFixed(2), draft.Currency)

	unresolved := 0
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s x%s = %s", i+1, item.RawLabel, item.Quantity.String(), item.LineTotal.StringFixed(2))
		switch item.ResolutionStatus {
		case models.ResolutionMatched:
			fmt.Fprintf(&b, " → %s", item.ProductName)
		case models.ResolutionAmbiguous:
			unresolved++
			names := make([]string, 0, len(item.Candidates))
			for _, c := range item.Candidates {
				names = append(names, c.ProductName)
			}
			fmt.Fprintf(&b, " ⚠ could be: %s", strings.Join(names, ", "))
		case models.ResolutionNoMatch:
			unresolved++
			b.WriteString(" ✗ new product")
		}
		b.WriteString("\n")
	}

	for _, w := range warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	if unresolved > 0 {
		fmt.Fprintf(&b, "%d item(s) need your confirmation. ", unresolved)
	}
	fmt.Fprintf(&b, "Confirm draft %s to save it, or discard it.", draft.ID)
	return b.String()
}
