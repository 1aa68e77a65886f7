package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata"
)

var (
	isinPattern      = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
	dotSuffixPattern = regexp.MustCompile(`\.[A-Z]{1,4}$`)
)

// majorUSExchanges are MIC codes that mark a primary US listing.
var majorUSExchanges = map[string]struct{}{
	"XNAS": {},
	"XNYS": {},
	"BATS": {},
	"ARCX": {},
}

// IsISIN reports whether v has ISIN shape, ignoring case. The check digit is
// not verified.
func IsISIN(v string) bool {
	return isinPattern.MatchString(strings.ToUpper(strings.TrimSpace(v)))
}

// IdentifierResolver turns a ticker or ISIN into trading symbols and identities.
type IdentifierResolver struct {
	mapper marketdata.IdentifierMapper
}

func NewIdentifierResolver(mapper marketdata.IdentifierMapper) *IdentifierResolver {
	return &IdentifierResolver{mapper: mapper}
}

// ResolveCandidates returns the ordered, deduplicated symbols worth quoting
// for query. A plain ticker yields [T, T.US]. An ISIN yields each mapped
// ticker followed by its ".US" variant when it has no exchange suffix, or
// the ISIN itself when mapping fails or finds nothing.
func (r *IdentifierResolver) ResolveCandidates(ctx context.Context, query string) []string {
	q := strings.TrimSpace(query)
	if q == "" {
		return []string{}
	}
	upper := strings.ToUpper(q)

	if !IsISIN(q) {
		return uniq([]string{upper, upper + ".US"})
	}

	entries, err := r.mapper.MapISIN(ctx, upper)
	if err != nil {
		slog.WarnContext(ctx, "isin mapping failed, quoting isin directly", "isin", upper, "error", err)
		return []string{upper}
	}

	out := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		t := strings.ToUpper(strings.TrimSpace(e.Ticker))
		if t == "" {
			continue
		}
		out = append(out, t)
		if !dotSuffixPattern.MatchString(t) {
			out = append(out, t+".US")
		}
	}
	if len(out) == 0 {
		return []string{upper}
	}
	return uniq(out)
}

// ResolveIdentity maps query to a name, ISIN and ticker using the best
// scoring mapping entry.
func (r *IdentifierResolver) ResolveIdentity(ctx context.Context, query string) (domain.Identity, error) {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return domain.Identity{}, fmt.Errorf("%w: q required (ticker or ISIN)", domain.ErrInvalidInput)
	}

	if IsISIN(q) {
		entries, err := r.mapper.MapISIN(ctx, q)
		if err != nil {
			return domain.Identity{}, fmt.Errorf("failed to map ISIN: %w", err)
		}
		best, ok := PickBestEntry(entries)
		if !ok {
			return domain.Identity{}, fmt.Errorf("%w: ISIN %s", domain.ErrNotFound, q)
		}
		isin := q
		return domain.Identity{
			Name:   best.DisplayName(q),
			ISIN:   &isin,
			Ticker: upperOrNil(best.Ticker),
		}, nil
	}

	entries, err := r.mapper.MapTicker(ctx, q)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to map ticker: %w", err)
	}
	best, ok := PickBestEntry(entries)
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: ticker %s", domain.ErrNotFound, q)
	}
	return domain.Identity{
		Name:   best.DisplayName(q),
		ISIN:   upperOrNil(best.ISIN),
		Ticker: upperOrNil(best.Ticker),
	}, nil
}

// ScoreEntry ranks a mapping entry, favouring US common stock in USD on a
// major US exchange.
func ScoreEntry(e domain.FigiEntry) int {
	score := 0
	if strings.Contains(strings.ToLower(e.SecurityType), "common") {
		score += 4
	}
	if strings.ToUpper(e.Country) == "US" {
		score += 3
	}
	if strings.ToUpper(e.Currency) == domain.CurrencyUSD {
		score += 2
	}
	if _, ok := majorUSExchanges[e.Exchange()]; ok {
		score += 3
	}
	return score
}

// PickBestEntry returns the highest scoring entry; ties keep provider order.
func PickBestEntry(entries []domain.FigiEntry) (domain.FigiEntry, bool) {
	if len(entries) == 0 {
		return domain.FigiEntry{}, false
	}

	sorted := append([]domain.FigiEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ScoreEntry(sorted[i]) > ScoreEntry(sorted[j])
	})
	return sorted[0], true
}

func uniq(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func upperOrNil(v string) *string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return nil
	}
	return &v
}
