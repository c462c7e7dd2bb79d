package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"github.com/luxtick/luxtick_backend/utils"
)

// maxImageEdge caps the longer edge sent to the vision model. Receipt
// text stays readable well below this; anything larger only costs
// tokens and latency.
const maxImageEdge = 1600

const extractionPrompt = `Read this receipt photo and return ONLY a JSON object, no markdown, with this shape:
{
  "store_name": "...",
  "date": "YYYY-MM-DD or empty if not printed",
  "items": [{"raw_label": "text exactly as printed", "quantity": "2", "unit_price": "1.50", "line_total": "3.00"}],
  "subtotal": "...or null",
  "tax": "...or null",
  "total": "...",
  "currency": "EUR"
}
Copy item labels exactly as printed, including abbreviations. Use null for values not on the receipt.`

// ReceiptParser is the vision-model extraction stage. It satisfies the
// ingestion pipeline's extractor interface.
type ReceiptParser struct {
	Client LLMClient
}

func NewReceiptParser(client LLMClient) *ReceiptParser {
	return &ReceiptParser{Client: client}
}

func (p *ReceiptParser) ExtractReceipt(ctx context.Context, image []byte) (*models.ExtractedReceipt, error) {
	logger := config.GetLogger()

	prepared, err := prepareImage(image)
	if err != nil {
		config.LogError(logger, "agent", "ExtractReceipt", "prepare image", len(image), err)
		return nil, fmt.Errorf("%w: unreadable image", utils.ErrorExtractionFailed)
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(prepared)
	request := CompletionRequest{
		Model: config.GetVisionModel(),
		Messages: []Message{{
			Role: "user",
			Content: []ContentPart{
				{Type: "text", Text: extractionPrompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
			},
		}},
	}
	resp, err := p.complete(ctx, request)
	if err != nil {
		config.LogError(logger, "agent", "ExtractReceipt", "vision call", nil, err)
		return nil, err
	}

	var extracted models.ExtractedReceipt
	cleaned := stripCodeFences(resp.Content)
	if err := utils.UnmarshalFromJSON([]byte(cleaned), &extracted); err != nil {
		config.LogError(logger, "agent", "ExtractReceipt", "parse output", cleaned, err)
		return nil, fmt.Errorf("%w: model output is not valid JSON", utils.ErrorExtractionFailed)
	}
	return &extracted, nil
}

// complete calls the vision model, retrying once on a transient
// failure, mirroring the dispatcher's policy. A second transient
// failure maps to ErrorModelUnavailable; a permanent one (refusal, bad
// request) to ErrorExtractionFailed.
func (p *ReceiptParser) complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	resp, err := p.Client.Complete(ctx, request)
	if err == nil {
		return resp, nil
	}
	if !IsTransientModelError(err) {
		return nil, fmt.Errorf("%w: %v", utils.ErrorExtractionFailed, err)
	}
	resp, err = p.Client.Complete(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorModelUnavailable, err)
	}
	return resp, nil
}

// prepareImage re-encodes the photo as JPEG, downscaling it when the
// longer edge exceeds the cap.
func prepareImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxImageEdge || bounds.Dy() > maxImageEdge {
		if bounds.Dx() >= bounds.Dy() {
			img = imaging.Resize(img, maxImageEdge, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxImageEdge, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stripCodeFences removes a ```json ... ``` wrapper when the model
// ignores the plain-JSON instruction.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.HasPrefix(s, "{") {
		// Drop the language tag line (```json).
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
