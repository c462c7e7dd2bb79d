package workflow

import (
	"testing"

	"github.com/luxtick/luxtick_backend/models"
)

func testCatalog() []models.Product {
	return []models.Product{
		{ID: 1, Name: "Chicken Breast", Aliases: []models.ProductAlias{
			{ProductId: 1, Alias: "pechuga pollo"},
		}},
		{ID: 2, Name: "Whole Milk", Aliases: []models.ProductAlias{
			{ProductId: 2, Alias: "leche entera"},
		}},
		{ID: 3, Name: "Ground Coffee", Aliases: []models.ProductAlias{
			{ProductId: 3, Alias: "cafe molido"},
		}},
	}
}

func TestResolve_MatchesLearnedAliasRegardlessOfWordOrder(t *testing.T) {
	idx := BuildAliasIndex(testCatalog())

	outcome := idx.Resolve("POLLO PECHUGA 500G")
	if outcome.Status != models.ResolutionMatched {
		t.Fatalf("expected MATCHED, got %s (score %.2f)", outcome.Status, outcome.Score)
	}
	if outcome.ProductId != 1 {
		t.Fatalf("expected product 1, got %d", outcome.ProductId)
	}
	if outcome.Score < 0.99 {
		t.Fatalf("token-sorted exact alias should score ~1.0, got %.2f", outcome.Score)
	}
}

func TestResolve_AliasFragmentMatches(t *testing.T) {
	// A truncated receipt abbreviation of a learned alias must still
	// auto-link: the indel ratio is taken over the combined length, so
	// the missing "uga" costs 3/23, not 3/13.
	products := []models.Product{
		{ID: 1, Name: "Chicken Breast", Aliases: []models.ProductAlias{
			{ProductId: 1, Alias: "pollo pechuga"},
		}},
		{ID: 2, Name: "Whole Milk", Aliases: []models.ProductAlias{
			{ProductId: 2, Alias: "leche entera"},
		}},
	}
	idx := BuildAliasIndex(products)

	outcome := idx.Resolve("PECH POLLO")
	if outcome.Status != models.ResolutionMatched {
		t.Fatalf("expected MATCHED, got %s (score %.4f)", outcome.Status, outcome.Score)
	}
	if outcome.ProductId != 1 {
		t.Fatalf("expected product 1, got %d", outcome.ProductId)
	}
	if outcome.Score < 0.85 || outcome.Score > 0.88 {
		t.Fatalf("expected score ≈ 0.87, got %.4f", outcome.Score)
	}
}

func TestResolve_ExactCanonicalName(t *testing.T) {
	idx := BuildAliasIndex(testCatalog())

	outcome := idx.Resolve("Whole Milk")
	if outcome.Status != models.ResolutionMatched || outcome.ProductId != 2 {
		t.Fatalf("expected MATCHED product 2, got %s product %d", outcome.Status, outcome.ProductId)
	}
}

func TestResolve_NoOverlapIsNoMatch(t *testing.T) {
	idx := BuildAliasIndex(testCatalog())

	outcome := idx.Resolve("DETERGENTE LAVADORA")
	if outcome.Status != models.ResolutionNoMatch {
		t.Fatalf("expected NO_MATCH, got %s (score %.2f)", outcome.Status, outcome.Score)
	}
	if outcome.ProductId != 0 {
		t.Fatalf("NO_MATCH must not carry a product id, got %d", outcome.ProductId)
	}
}

func TestResolve_EmptyIndexAndEmptyLabel(t *testing.T) {
	empty := BuildAliasIndex(nil)
	if got := empty.Resolve("pechuga pollo"); got.Status != models.ResolutionNoMatch {
		t.Fatalf("empty index expected NO_MATCH, got %s", got.Status)
	}

	idx := BuildAliasIndex(testCatalog())
	if got := idx.Resolve("2x 500 g"); got.Status != models.ResolutionNoMatch {
		t.Fatalf("label that normalizes to empty expected NO_MATCH, got %s", got.Status)
	}
}

func TestResolve_NearTieIsAmbiguousWithCandidates(t *testing.T) {
	// A one-character edit over a long alias keeps the runner-up inside
	// the ambiguity band, so the matcher must ask instead of guessing.
	products := []models.Product{
		{ID: 10, Name: "Tomato Sauce", Aliases: []models.ProductAlias{
			{ProductId: 10, Alias: "tomate frito estilo casero"},
		}},
		{ID: 11, Name: "Crushed Tomato", Aliases: []models.ProductAlias{
			{ProductId: 11, Alias: "tomate frita estilo casero"},
		}},
	}
	idx := BuildAliasIndex(products)

	outcome := idx.Resolve("TOMATE FRITO ESTILO CASERO")
	if outcome.Status != models.ResolutionAmbiguous {
		t.Fatalf("expected AMBIGUOUS, got %s (score %.2f)", outcome.Status, outcome.Score)
	}
	if len(outcome.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(outcome.Candidates))
	}
	if outcome.Candidates[0].ProductId != 10 {
		t.Fatalf("expected exact alias ranked first, got product %d", outcome.Candidates[0].ProductId)
	}
	if outcome.Candidates[0].Score < outcome.Candidates[1].Score {
		t.Fatalf("candidates not ranked by score: %.2f then %.2f", outcome.Candidates[0].Score, outcome.Candidates[1].Score)
	}
}

func TestResolve_CandidateListIsCapped(t *testing.T) {
	products := []models.Product{
		{ID: 1, Name: "queso rallado a"},
		{ID: 2, Name: "queso rallado b"},
		{ID: 3, Name: "queso rallado c"},
		{ID: 4, Name: "queso rallado d"},
		{ID: 5, Name: "queso rallado e"},
	}
	idx := BuildAliasIndex(products)

	outcome := idx.Resolve("queso rallado")
	if outcome.Status != models.ResolutionAmbiguous {
		t.Fatalf("expected AMBIGUOUS, got %s", outcome.Status)
	}
	if len(outcome.Candidates) != candidateLimit {
		t.Fatalf("expected %d candidates, got %d", candidateLimit, len(outcome.Candidates))
	}
}

func TestCatalogDirtyOnAliasLearning(t *testing.T) {
	// A finalization that only teaches aliases must still drop the
	// cached index, or the next Resolve would not see them.
	if !catalogDirty(0, 1) {
		t.Fatal("alias-only finalization must mark the catalog dirty")
	}
	if !catalogDirty(2, 0) {
		t.Fatal("created products must mark the catalog dirty")
	}
	if catalogDirty(0, 0) {
		t.Fatal("a finalization with every line skipped changes nothing")
	}

	// After the rebuild, the learned alias resolves exactly.
	products := testCatalog()
	products[0].Aliases = append(products[0].Aliases, models.ProductAlias{ProductId: 1, Alias: "pech pollo"})
	idx := BuildAliasIndex(products)

	outcome := idx.Resolve("PECH POLLO")
	if outcome.Status != models.ResolutionMatched || outcome.ProductId != 1 {
		t.Fatalf("learned alias must resolve, got %s product %d", outcome.Status, outcome.ProductId)
	}
	if outcome.Score < 0.99 {
		t.Fatalf("exact learned alias should score ~1.0, got %.4f", outcome.Score)
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"pechuga pollo", "pechuga pollo", 1.0, 1.0},
		{"", "pechuga pollo", 0, 0},
		{"pechuga pollo", "", 0, 0},
		{"tomate frito", "tomate frita", 0.9, 0.99},
		{"pech pollo", "pechuga pollo", 0.85, 0.88},
		{"abc", "xyz", 0, 0.01},
	}
	for _, tc := range cases {
		got := similarity(tc.a, tc.b)
		if got < tc.min || got > tc.max {
			t.Fatalf("similarity(%q, %q) = %.3f, expected within [%.2f, %.2f]", tc.a, tc.b, got, tc.min, tc.max)
		}
	}
}
