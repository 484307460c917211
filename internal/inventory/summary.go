package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const recentWindow = 7 * 24 * time.Hour

// Summary returns dashboard counters for kind. Concurrent callers for the same
// kind share one computation; the result is cached until the next write.
func (s *Service) Summary(ctx context.Context, kind Kind) (Summary, error) {
	if !kind.Valid() {
		return Summary{}, fmt.Errorf("%w: unknown inventory kind %q", ErrValidation, kind)
	}
	v, err, _ := s.summaries.Do(string(kind), func() (interface{}, error) {
		if s.cache == nil {
			return s.computeSummary(ctx, kind)
		}
		return s.cache.FetchSummary(ctx, kind, func(ctx context.Context) (Summary, error) {
			return s.computeSummary(ctx, kind)
		})
	})
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

func (s *Service) computeSummary(ctx context.Context, kind Kind) (Summary, error) {
	records, err := s.repo.AllRecords(ctx, kind, DeletedInclude)
	if err != nil {
		return Summary{}, err
	}
	pending, err := s.repo.ListRequests(ctx, kind, StatusPending)
	if err != nil {
		return Summary{}, err
	}
	cutoff := s.now().Add(-recentWindow)
	out := Summary{PendingEdits: len(pending)}
	categories := make(map[string]struct{})
	for _, rec := range records {
		if rec.IsDeleted {
			out.Deleted++
			continue
		}
		out.All++
		if c := strings.TrimSpace(rec.Category); c != "" {
			categories[c] = struct{}{}
		}
		switch rec.StockClass {
		case StockLow:
			out.LowStock++
		case StockHigh:
			out.HighStock++
		}
		if rec.ModifiedAt.After(cutoff) {
			out.RecentlyUpdated++
		}
		if rec.CreatedAt.After(cutoff) {
			out.NewlyAdded++
		}
	}
	out.Categorized = len(categories)
	return out, nil
}

// GroupBy names the supported grouping keys.
type GroupBy string

const (
	GroupByCategory  GroupBy = "category"
	GroupByUpdatedAt GroupBy = "updatedAt"
	GroupByCreatedAt GroupBy = "createdAt"
)

const (
	uncategorized = "Uncategorized"
	noDate        = "No date"
)

// Group is one bucket of a grouped listing.
type Group struct {
	Key     string        `json:"key"`
	Count   int           `json:"count"`
	Records []StockRecord `json:"records"`
}

// Group buckets the records matching filter by category or by calendar day.
// Categories sort alphabetically, days newest first; the fallback bucket is last.
func (s *Service) Group(ctx context.Context, kind Kind, by GroupBy, filter ListFilter) ([]Group, error) {
	var keyOf func(StockRecord) string
	switch by {
	case GroupByCategory:
		keyOf = func(r StockRecord) string {
			if c := strings.TrimSpace(r.Category); c != "" {
				return c
			}
			return uncategorized
		}
	case GroupByUpdatedAt:
		keyOf = func(r StockRecord) string { return dayKey(r.ModifiedAt) }
	case GroupByCreatedAt:
		keyOf = func(r StockRecord) string { return dayKey(r.CreatedAt) }
	default:
		return nil, fmt.Errorf("%w: unknown grouping %q", ErrValidation, by)
	}

	records, err := s.ExportRecords(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	groups := []Group{}
	for _, rec := range records {
		key := keyOf(rec)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Records = append(groups[i].Records, rec)
		groups[i].Count++
	}

	fallback := uncategorized
	if by != GroupByCategory {
		fallback = noDate
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if a == fallback || b == fallback {
			return b == fallback && a != fallback
		}
		if by == GroupByCategory {
			return a < b
		}
		return a > b
	})
	return groups, nil
}

func dayKey(t time.Time) string {
	if t.IsZero() {
		return noDate
	}
	return t.UTC().Format("2006-01-02")
}

// LowStock returns the active records of kind currently classified as low stock.
func (s *Service) LowStock(ctx context.Context, kind Kind) ([]StockRecord, error) {
	records, err := s.repo.AllRecords(ctx, kind, DeletedExclude)
	if err != nil {
		return nil, err
	}
	low := []StockRecord{}
	for _, rec := range records {
		if rec.StockClass == StockLow {
			low = append(low, rec)
		}
	}
	return low, nil
}
