package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/utils"
	"github.com/luxtick/luxtick_backend/workflow"
)

const advisorPrompt = `You maintain a personal grocery catalog. For the receipt line below, return ONLY a JSON object, no markdown:
{
  "canonical_name": "English product name, singular, no brand unless it is the product",
  "aliases": ["other spellings this product appears under on receipts"],
  "category_path": "broad > narrower > narrowest, e.g. Food > Dairy > Milk"
}
Receipt line: %s`

// ProductAdvisor asks the conversational model to name and categorize a
// product about to be created from an unmatched receipt label.
type ProductAdvisor struct {
	Client LLMClient
}

func NewProductAdvisor(client LLMClient) *ProductAdvisor {
	return &ProductAdvisor{Client: client}
}

func (a *ProductAdvisor) ProposeProduct(ctx context.Context, rawLabel string) (*workflow.ProductProposal, error) {
	resp, err := a.Client.Complete(ctx, CompletionRequest{
		Messages: []Message{{
			Role:    "user",
			Content: fmt.Sprintf(advisorPrompt, rawLabel),
		}},
	})
	if err != nil {
		return nil, err
	}

	var proposal workflow.ProductProposal
	cleaned := stripCodeFences(resp.Content)
	if err := utils.UnmarshalFromJSON([]byte(cleaned), &proposal); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "agent", "ProposeProduct", "parse output", cleaned, err)
		return nil, fmt.Errorf("%w: advisor output is not valid JSON", utils.ErrorExtractionFailed)
	}
	if strings.TrimSpace(proposal.CanonicalName) == "" {
		return nil, fmt.Errorf("%w: advisor returned no canonical name", utils.ErrorExtractionFailed)
	}
	return &proposal, nil
}
