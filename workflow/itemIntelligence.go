package workflow

import (
	"context"
	"time"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
)

// ProductProposal is the model's enrichment for a brand-new product:
// an English canonical name, alternate receipt spellings worth learning
// as aliases, and a " > " separated category path.
type ProductProposal struct {
	CanonicalName string   `json:"canonical_name"`
	Aliases       []string `json:"aliases"`
	CategoryPath  string   `json:"category_path"`
}

// ProductAdvisor proposes catalog metadata for products about to be
// created from an unmatched receipt label. The agent package implements
// it; when the feature is off no advisor is registered.
type ProductAdvisor interface {
	ProposeProduct(ctx context.Context, rawLabel string) (*ProductProposal, error)
}

var productAdvisor ProductAdvisor

// SetProductAdvisor registers the advisor at startup.
func SetProductAdvisor(advisor ProductAdvisor) {
	productAdvisor = advisor
}

const advisorCallTimeout = 15 * time.Second

// proposalsForNewLines asks the advisor about every line that will
// create a brand-new product at finalization: NO_MATCH lines the user
// neither skipped nor corrected. Runs before the commit transaction so
// model latency never holds row locks. Advisor failures only cost the
// enrichment; the product is still created from the normalized label.
func proposalsForNewLines(ctx context.Context, items []models.DraftLineItem, corrections []LineCorrection) map[string]*ProductProposal {
	if productAdvisor == nil || !config.ItemIntelligenceEnabled() {
		return nil
	}
	logger := config.GetLogger()

	corrected := map[int]bool{}
	for _, c := range corrections {
		if c.Skip || c.ProductId != nil || c.ProductName != "" {
			corrected[c.Index] = true
		}
	}

	proposals := map[string]*ProductProposal{}
	for i, item := range items {
		if corrected[i+1] {
			continue
		}
		if item.ResolutionStatus != models.ResolutionNoMatch || item.NormalizedLabel == "" {
			continue
		}
		if _, seen := proposals[item.NormalizedLabel]; seen {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, advisorCallTimeout)
		proposal, err := productAdvisor.ProposeProduct(callCtx, item.RawLabel)
		cancel()
		if err != nil {
			config.LogError(logger, "workflow", "proposalsForNewLines", "advisor call", item.RawLabel, err)
			continue
		}
		if proposal == nil || proposal.CanonicalName == "" {
			continue
		}
		proposals[item.NormalizedLabel] = proposal
	}
	return proposals
}
