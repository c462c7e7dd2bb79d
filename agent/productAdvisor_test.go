package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/luxtick/luxtick_backend/utils"
)

func TestProductAdvisor_ProposeProduct(t *testing.T) {
	client := &scriptedClient{responses: []*CompletionResponse{{
		Content: `{"canonical_name": "Chicken Breast", "aliases": ["pechuga pollo", "pech pollo"], "category_path": "Food > Poultry"}`,
	}}}
	advisor := NewProductAdvisor(client)

	proposal, err := advisor.ProposeProduct(context.Background(), "PECH POLLO 500G")
	if err != nil {
		t.Fatalf("ProposeProduct: %v", err)
	}
	if proposal.CanonicalName != "Chicken Breast" {
		t.Fatalf("canonical name = %q", proposal.CanonicalName)
	}
	if len(proposal.Aliases) != 2 || proposal.Aliases[0] != "pechuga pollo" {
		t.Fatalf("aliases = %v", proposal.Aliases)
	}
	if proposal.CategoryPath != "Food > Poultry" {
		t.Fatalf("category path = %q", proposal.CategoryPath)
	}

	if len(client.requests) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(client.requests))
	}
	prompt := client.requests[0].Messages[0].Content.(string)
	if !strings.Contains(prompt, "PECH POLLO 500G") {
		t.Fatalf("prompt does not carry the receipt line: %q", prompt)
	}
}

func TestProductAdvisor_StripsFences(t *testing.T) {
	client := &scriptedClient{responses: []*CompletionResponse{{
		Content: "```json\n{\"canonical_name\": \"Whole Milk\"}\n```",
	}}}
	proposal, err := NewProductAdvisor(client).ProposeProduct(context.Background(), "LECHE ENTERA")
	if err != nil {
		t.Fatalf("ProposeProduct: %v", err)
	}
	if proposal.CanonicalName != "Whole Milk" {
		t.Fatalf("canonical name = %q", proposal.CanonicalName)
	}
}

func TestProductAdvisor_BadOutput(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not json", "Sure! That looks like chicken."},
		{"empty canonical name", `{"canonical_name": "  ", "aliases": []}`},
	}
	for _, tc := range cases {
		client := &scriptedClient{responses: []*CompletionResponse{{Content: tc.content}}}
		_, err := NewProductAdvisor(client).ProposeProduct(context.Background(), "PECH POLLO")
		if !errors.Is(err, utils.ErrorExtractionFailed) {
			t.Fatalf("%s: expected extraction failure, got %v", tc.name, err)
		}
	}
}

func TestProductAdvisor_ClientError(t *testing.T) {
	clientErr := &APIError{StatusCode: 503}
	client := &scriptedClient{errs: []error{clientErr}}
	_, err := NewProductAdvisor(client).ProposeProduct(context.Background(), "PECH POLLO")
	if !errors.Is(err, clientErr) {
		t.Fatalf("client error must pass through, got %v", err)
	}
}
