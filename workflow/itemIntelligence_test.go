package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/luxtick/luxtick_backend/models"
)

type fakeAdvisor struct {
	proposals map[string]*ProductProposal
	calls     []string
}

func (f *fakeAdvisor) ProposeProduct(ctx context.Context, rawLabel string) (*ProductProposal, error) {
	f.calls = append(f.calls, rawLabel)
	if p, ok := f.proposals[rawLabel]; ok {
		return p, nil
	}
	return nil, errors.New("model unavailable")
}

func TestProposalsForNewLines(t *testing.T) {
	t.Setenv("ENABLE_ITEM_INTELLIGENCE", "true")
	advisor := &fakeAdvisor{proposals: map[string]*ProductProposal{
		"PECH POLLO": {CanonicalName: "Chicken Breast", Aliases: []string{"pechuga pollo"}, CategoryPath: "Food > Poultry"},
	}}
	SetProductAdvisor(advisor)
	defer SetProductAdvisor(nil)

	items := []models.DraftLineItem{
		{RawLabel: "PECH POLLO", NormalizedLabel: "pech pollo", ResolutionStatus: models.ResolutionNoMatch},
		{RawLabel: "LECHE ENTERA", NormalizedLabel: "leche entera", ResolutionStatus: models.ResolutionMatched},
		{RawLabel: "YOG NAT", NormalizedLabel: "yog nat", ResolutionStatus: models.ResolutionAmbiguous},
		{RawLabel: "DETERGENTE", NormalizedLabel: "detergente", ResolutionStatus: models.ResolutionNoMatch},
	}
	corrections := []LineCorrection{{Index: 4, Skip: true}}

	proposals := proposalsForNewLines(context.Background(), items, corrections)

	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(proposals))
	}
	p := proposals["pech pollo"]
	if p == nil || p.CanonicalName != "Chicken Breast" {
		t.Fatalf("unexpected proposal: %+v", p)
	}
	// Matched, ambiguous and skipped lines must not reach the advisor.
	if len(advisor.calls) != 1 || advisor.calls[0] != "PECH POLLO" {
		t.Fatalf("advisor called for the wrong lines: %v", advisor.calls)
	}
}

func TestProposalsForNewLines_DisabledOrUnregistered(t *testing.T) {
	items := []models.DraftLineItem{
		{RawLabel: "PECH POLLO", NormalizedLabel: "pech pollo", ResolutionStatus: models.ResolutionNoMatch},
	}

	t.Setenv("ENABLE_ITEM_INTELLIGENCE", "true")
	SetProductAdvisor(nil)
	if got := proposalsForNewLines(context.Background(), items, nil); got != nil {
		t.Fatalf("no advisor registered must yield nil, got %+v", got)
	}

	t.Setenv("ENABLE_ITEM_INTELLIGENCE", "false")
	advisor := &fakeAdvisor{}
	SetProductAdvisor(advisor)
	defer SetProductAdvisor(nil)
	if got := proposalsForNewLines(context.Background(), items, nil); got != nil {
		t.Fatalf("disabled flag must yield nil, got %+v", got)
	}
	if len(advisor.calls) != 0 {
		t.Fatalf("advisor must not be called when disabled: %v", advisor.calls)
	}
}

func TestProposalsForNewLines_AdvisorFailureIsBestEffort(t *testing.T) {
	t.Setenv("ENABLE_ITEM_INTELLIGENCE", "true")
	SetProductAdvisor(&fakeAdvisor{})
	defer SetProductAdvisor(nil)

	items := []models.DraftLineItem{
		{RawLabel: "DETERGENTE", NormalizedLabel: "detergente", ResolutionStatus: models.ResolutionNoMatch},
	}
	proposals := proposalsForNewLines(context.Background(), items, nil)
	if len(proposals) != 0 {
		t.Fatalf("failed advisor call must produce no proposal, got %+v", proposals)
	}
}
