package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/luxtick/luxtick_backend/config"
	"github.com/luxtick/luxtick_backend/models"
	"gorm.io/gorm"
)

// candidateLimit caps how many near-miss options an ambiguous line
// surfaces to the user.
const candidateLimit = 3

// ResolutionOutcome is what the matcher decides for one raw label.
type ResolutionOutcome struct {
	Status      models.ResolutionStatus
	ProductId   int
	ProductName string
	Score       float64
	Candidates  []models.ResolutionOption
}

type indexEntry struct {
	productId   int
	productName string
	sortedKey   string
}

// AliasIndex is an in-memory matching index over one user's catalog.
// It is immutable after Build and safe for concurrent Resolve calls.
type AliasIndex struct {
	entries []indexEntry

	autoThreshold   float64
	rejectThreshold float64
	ambiguityBand   float64
}

// BuildAliasIndex indexes every product under its canonical name and
// every learned alias. Thresholds come from config so they can be
// tuned per deployment.
func BuildAliasIndex(products []models.Product) *AliasIndex {
	idx := &AliasIndex{
		autoThreshold:   config.GetMatchAutoThreshold(),
		rejectThreshold: config.GetMatchRejectThreshold(),
		ambiguityBand:   config.GetMatchAmbiguityBand(),
	}
	for _, p := range products {
		idx.add(p.ID, p.Name, NormalizeLabel(p.Name))
		for _, a := range p.Aliases {
			idx.add(p.ID, p.Name, NormalizeLabel(a.Alias))
		}
	}
	return idx
}

func (idx *AliasIndex) add(productId int, productName string, normalized string) {
	if normalized == "" {
		return
	}
	idx.entries = append(idx.entries, indexEntry{
		productId:   productId,
		productName: productName,
		sortedKey:   sortTokens(normalized),
	})
}

// similarity is the normalized indel ratio over token-sorted strings:
// 1 - indel/(len(a)+len(b)). Word order never penalizes a match, and
// dividing by the combined length keeps a short receipt fragment of a
// longer alias scoring high ("pech pollo" vs "pechuga pollo" ≈ 0.87).
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	return 1 - float64(indelDistance(ra, rb))/float64(total)
}

// indelDistance is the minimum number of single-rune insertions and
// deletions turning a into b, i.e. len(a)+len(b)-2*lcs(a,b).
func indelDistance(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return len(a) + len(b) - 2*prev[len(b)]
}

// Resolve scores the label against the whole index and maps the best
// score into one of three tiers:
//   - MATCHED when the best score clears the auto threshold and beats
//     the runner-up product by more than the ambiguity band
//   - AMBIGUOUS when the best score sits between reject and auto, or
//     when two products are too close to call
//   - NO_MATCH below the reject threshold (or on an empty index)
func (idx *AliasIndex) Resolve(rawLabel string) ResolutionOutcome {
	normalized := sortTokens(NormalizeLabel(rawLabel))
	if normalized == "" || len(idx.entries) == 0 {
		return ResolutionOutcome{Status: models.ResolutionNoMatch}
	}

	// Best score per product across all of its names and aliases.
	best := map[int]float64{}
	names := map[int]string{}
	for _, e := range idx.entries {
		score := similarity(normalized, e.sortedKey)
		if score > best[e.productId] {
			best[e.productId] = score
			names[e.productId] = e.productName
		}
	}

	ranked := make([]models.ResolutionOption, 0, len(best))
	for productId, score := range best {
		if score < idx.rejectThreshold {
			continue
		}
		ranked = append(ranked, models.ResolutionOption{
			ProductId:   productId,
			ProductName: names[productId],
			Score:       score,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProductId < ranked[j].ProductId
	})

	if len(ranked) == 0 {
		return ResolutionOutcome{Status: models.ResolutionNoMatch}
	}

	top := ranked[0]
	clearWinner := len(ranked) == 1 || top.Score-ranked[1].Score > idx.ambiguityBand
	if top.Score >= idx.autoThreshold && clearWinner {
		return ResolutionOutcome{
			Status:      models.ResolutionMatched,
			ProductId:   top.ProductId,
			ProductName: top.ProductName,
			Score:       top.Score,
		}
	}

	if len(ranked) > candidateLimit {
		ranked = ranked[:candidateLimit]
	}
	return ResolutionOutcome{
		Status:     models.ResolutionAmbiguous,
		Score:      top.Score,
		Candidates: ranked,
	}
}

// ProductMatcher loads catalog indexes per user, with a Redis-backed
// catalog cache in front of the database.
type ProductMatcher struct {
	DB *gorm.DB
}

func NewProductMatcher(db *gorm.DB) *ProductMatcher {
	return &ProductMatcher{DB: db}
}

func catalogCacheKey(userId int) string {
	return fmt.Sprintf("catalog:%d", userId)
}

// catalogCacheTTL is a backstop only; commits that touch products or
// aliases invalidate the key explicitly.
const catalogCacheTTL = time.Hour

// IndexForUser builds the user's alias index, from cache when present.
func (m *ProductMatcher) IndexForUser(ctx context.Context, userId int) (*AliasIndex, error) {
	var products []models.Product
	exists, err := config.GetRedisObject(catalogCacheKey(userId), &products)
	if err != nil || !exists {
		products, err = models.GetProductsWithAliases(ctx, m.DB, userId)
		if err != nil {
			return nil, err
		}
		if err := config.SetRedisObject(catalogCacheKey(userId), &products, catalogCacheTTL); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "workflow", "IndexForUser", "catalog cache write", catalogCacheKey(userId), err)
		}
	}
	return BuildAliasIndex(products), nil
}

// Invalidate drops the cached catalog after products or aliases change.
func (m *ProductMatcher) Invalidate(userId int) {
	if err := config.RemoveRedisKey(catalogCacheKey(userId)); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "workflow", "Invalidate", "catalog cache invalidate", catalogCacheKey(userId), err)
	}
}
