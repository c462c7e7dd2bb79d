package agent

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/luxtick/luxtick_backend/utils"
)

func testPhoto(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 20))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

const extractionPayload = `{
	"store_name": "Mercadona",
	"date": "2026-08-20",
	"items": [
		{"raw_label": "PECHUGA POLLO", "quantity": "1", "unit_price": "4.50", "line_total": "4.50"},
		{"raw_label": "LECHE ENTERA 1L", "quantity": "2", "unit_price": "1.10", "line_total": "2.20"}
	],
	"subtotal": "6.70",
	"tax": null,
	"total": "6.70",
	"currency": "EUR"
}`

func TestExtractReceipt_ParsesModelOutput(t *testing.T) {
	client := &scriptedClient{responses: []*CompletionResponse{{Content: extractionPayload}}}
	parser := NewReceiptParser(client)

	extracted, err := parser.ExtractReceipt(context.Background(), testPhoto(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extracted.StoreName != "Mercadona" {
		t.Fatalf("unexpected store %q", extracted.StoreName)
	}
	if len(extracted.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(extracted.Items))
	}
	if extracted.Items[0].RawLabel != "PECHUGA POLLO" {
		t.Fatalf("raw label must survive verbatim, got %q", extracted.Items[0].RawLabel)
	}
	if extracted.Tax != nil {
		t.Fatalf("null tax must decode as nil, got %v", *extracted.Tax)
	}
}

func TestExtractReceipt_SendsPromptWithImage(t *testing.T) {
	client := &scriptedClient{responses: []*CompletionResponse{{Content: extractionPayload}}}
	parser := NewReceiptParser(client)

	if _, err := parser.ExtractReceipt(context.Background(), testPhoto(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := client.requests[0]
	if len(req.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(req.Messages))
	}
	parts, ok := req.Messages[0].Content.([]ContentPart)
	if !ok {
		t.Fatalf("vision message content is %T, expected []ContentPart", req.Messages[0].Content)
	}
	if len(parts) != 2 || parts[0].Type != "text" || parts[1].Type != "image_url" {
		t.Fatalf("unexpected content parts: %+v", parts)
	}
	if parts[1].ImageURL == nil || !bytes.HasPrefix([]byte(parts[1].ImageURL.URL), []byte("data:image/jpeg;base64,")) {
		t.Fatal("image must ride as a JPEG data URL")
	}
}

func TestExtractReceipt_StripsCodeFences(t *testing.T) {
	client := &scriptedClient{responses: []*CompletionResponse{{
		Content: "```json\n" + extractionPayload + "\n```",
	}}}
	parser := NewReceiptParser(client)

	extracted, err := parser.ExtractReceipt(context.Background(), testPhoto(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extracted.Total != "6.70" {
		t.Fatalf("unexpected total %q", extracted.Total)
	}
}

func TestExtractReceipt_MalformedOutputIsExtractionFailure(t *testing.T) {
	client := &scriptedClient{responses: []*CompletionResponse{{Content: "I could not read this receipt."}}}
	parser := NewReceiptParser(client)

	_, err := parser.ExtractReceipt(context.Background(), testPhoto(t))
	if !errors.Is(err, utils.ErrorExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
}

func TestExtractReceipt_RetriesOnceOnTransientError(t *testing.T) {
	client := &scriptedClient{
		errs:      []error{&APIError{StatusCode: 429, Body: "rate limited"}, nil},
		responses: []*CompletionResponse{nil, {Content: extractionPayload}},
	}
	parser := NewReceiptParser(client)

	extracted, err := parser.ExtractReceipt(context.Background(), testPhoto(t))
	if err != nil {
		t.Fatalf("one transient failure must be retried, got %v", err)
	}
	if extracted.StoreName != "Mercadona" {
		t.Fatalf("unexpected store %q", extracted.StoreName)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", client.calls)
	}
}

func TestExtractReceipt_PersistentTransientErrorIsUnavailable(t *testing.T) {
	client := &scriptedClient{errs: []error{
		&APIError{StatusCode: 503, Body: "down"},
		&APIError{StatusCode: 503, Body: "down"},
	}}
	parser := NewReceiptParser(client)

	_, err := parser.ExtractReceipt(context.Background(), testPhoto(t))
	if !errors.Is(err, utils.ErrorModelUnavailable) {
		t.Fatalf("expected model-unavailable, got %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", client.calls)
	}
}

func TestExtractReceipt_PermanentModelErrorIsExtractionFailure(t *testing.T) {
	client := &scriptedClient{errs: []error{&APIError{StatusCode: 400, Body: "bad request"}}}
	parser := NewReceiptParser(client)

	_, err := parser.ExtractReceipt(context.Background(), testPhoto(t))
	if !errors.Is(err, utils.ErrorExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
}

func TestExtractReceipt_UnreadableImage(t *testing.T) {
	client := &scriptedClient{}
	parser := NewReceiptParser(client)

	_, err := parser.ExtractReceipt(context.Background(), []byte("not an image"))
	if !errors.Is(err, utils.ErrorExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("model must not be called for unreadable input, got %d calls", client.calls)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripCodeFences(tc.in); got != tc.expected {
			t.Fatalf("stripCodeFences(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}
