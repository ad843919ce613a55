// Package memory provides an in-memory intelligence store for
// development and tests. It is safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"llmrank/internal/intel"
)

const defaultDomainLimit = 500

const defaultInsightLimit = 10

const topDomainsPerCategory = 5

// Store keeps domain records and insights in process memory.
type Store struct {
	mu       sync.RWMutex
	domains  map[string]intel.DomainRecord
	insights map[string][]intel.Insight
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		domains:  make(map[string]intel.DomainRecord),
		insights: make(map[string][]intel.Insight),
	}
}

// UpsertDomain inserts or fully refreshes one domain record.
func (s *Store) UpsertDomain(_ context.Context, record intel.DomainRecord) error {
	if record.Domain == "" {
		return intel.ErrDomainNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if record.Category == "" {
		record.Category = intel.Categorize(record.Domain)
	}
	if existing, ok := s.domains[record.Domain]; ok {
		record.CreatedAt = existing.CreatedAt
	} else if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Rank = 0
	s.domains[record.Domain] = record
	return nil
}

// SeedDomains inserts the named domains if absent, returning the
// number actually created.
func (s *Store) SeedDomains(_ context.Context, records []intel.DomainRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var created int64
	for _, record := range records {
		if record.Domain == "" {
			continue
		}
		if _, ok := s.domains[record.Domain]; ok {
			continue
		}
		if record.Category == "" {
			record.Category = intel.Categorize(record.Domain)
		}
		record.CreatedAt = now
		record.UpdatedAt = now
		record.Rank = 0
		s.domains[record.Domain] = record
		created++
	}
	return created, nil
}

// Domain returns one record with its global rank populated.
func (s *Store) Domain(_ context.Context, name string) (intel.DomainRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.ranked() {
		if record.Domain == name {
			return record, nil
		}
	}
	return intel.DomainRecord{}, intel.ErrDomainNotFound
}

// Domains lists records ordered by global rank.
func (s *Store) Domains(_ context.Context, filter intel.DomainFilter) ([]intel.DomainRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDomainLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []intel.DomainRecord
	for _, record := range s.ranked() {
		if filter.Category != "" && !strings.EqualFold(record.Category, filter.Category) {
			continue
		}
		out = append(out, record)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// CountDomains reports the total number of domain records.
func (s *Store) CountDomains(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.domains), nil
}

// SearchDomains returns every record whose name contains q
// (case-insensitive), ordered by rank.
func (s *Store) SearchDomains(_ context.Context, q string) ([]intel.DomainRecord, error) {
	needle := strings.ToLower(q)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []intel.DomainRecord
	for _, record := range s.ranked() {
		if strings.Contains(strings.ToLower(record.Domain), needle) {
			out = append(out, record)
		}
	}
	return out, nil
}

// Categories aggregates per-category counts, averages, and top domains.
func (s *Store) Categories(_ context.Context) ([]intel.CategorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]float64)
	counts := make(map[string]int)
	members := make(map[string][]intel.DomainRecord)
	for _, record := range s.domains {
		totals[record.Category] += record.Score
		counts[record.Category]++
		members[record.Category] = append(members[record.Category], record)
	}

	summaries := make([]intel.CategorySummary, 0, len(counts))
	for category, count := range counts {
		byScore := members[category]
		sort.Slice(byScore, func(i, j int) bool {
			if byScore[i].Score != byScore[j].Score {
				return byScore[i].Score > byScore[j].Score
			}
			return byScore[i].Domain < byScore[j].Domain
		})
		top := make([]string, 0, topDomainsPerCategory)
		for _, record := range byScore {
			top = append(top, record.Domain)
			if len(top) == topDomainsPerCategory {
				break
			}
		}
		summaries = append(summaries, intel.CategorySummary{
			Category:    category,
			DomainCount: count,
			AvgScore:    totals[category] / float64(count),
			TopDomains:  top,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].AvgScore != summaries[j].AvgScore {
			return summaries[i].AvgScore > summaries[j].AvgScore
		}
		return summaries[i].Category < summaries[j].Category
	})
	return summaries, nil
}

// NextDomain returns the least recently processed domain.
func (s *Store) NextDomain(_ context.Context) (intel.DomainRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  intel.DomainRecord
		found bool
	)
	for _, record := range s.domains {
		if !found {
			best = record
			found = true
			continue
		}
		if processedBefore(record, best) {
			best = record
		}
	}
	if !found {
		return intel.DomainRecord{}, intel.ErrNoDomains
	}
	return best, nil
}

// processedBefore orders records by last processed time with never
// processed first, name as tiebreak.
func processedBefore(a, b intel.DomainRecord) bool {
	switch {
	case a.LastProcessedAt == nil && b.LastProcessedAt != nil:
		return true
	case a.LastProcessedAt != nil && b.LastProcessedAt == nil:
		return false
	case a.LastProcessedAt != nil && b.LastProcessedAt != nil:
		if !a.LastProcessedAt.Equal(*b.LastProcessedAt) {
			return a.LastProcessedAt.Before(*b.LastProcessedAt)
		}
	}
	return a.Domain < b.Domain
}

// MarkProcessed stamps the processing time and content hash. An empty
// hash preserves the previous one.
func (s *Store) MarkProcessed(_ context.Context, name, contentHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.domains[name]
	if !ok {
		return intel.ErrDomainNotFound
	}
	stamp := at
	record.LastProcessedAt = &stamp
	if contentHash != "" {
		record.ContentHash = contentHash
	}
	record.UpdatedAt = time.Now().UTC()
	s.domains[name] = record
	return nil
}

// SaveInsight stores the insight and folds its quality score into the
// domain's cumulative mean.
func (s *Store) SaveInsight(_ context.Context, insight intel.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.domains[insight.Domain]
	if !ok {
		return intel.ErrDomainNotFound
	}

	s.insights[insight.Domain] = append([]intel.Insight{insight}, s.insights[insight.Domain]...)

	count := float64(record.InsightsCount)
	record.Score = ((record.Score * count) + insight.QualityScore*100) / (count + 1)
	record.InsightsCount++
	if insight.Category != "" {
		record.Category = insight.Category
	}
	record.UpdatedAt = time.Now().UTC()
	s.domains[insight.Domain] = record
	return nil
}

// InsightsForDomain lists a domain's insights, newest first. A
// non-positive limit falls back to the serving default.
func (s *Store) InsightsForDomain(_ context.Context, name string, limit int) ([]intel.Insight, error) {
	if limit <= 0 {
		limit = defaultInsightLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.insights[name]
	if len(stored) > limit {
		stored = stored[:limit]
	}
	out := make([]intel.Insight, len(stored))
	copy(out, stored)
	return out, nil
}

// PruneInsights deletes all but the newest keep insights, returning
// the number removed.
func (s *Store) PruneInsights(_ context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var all []intel.Insight
	for _, insights := range s.insights {
		all = append(all, insights...)
	}
	if len(all) <= keep {
		return 0, nil
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	survivors := make(map[string][]intel.Insight, len(s.insights))
	for _, insight := range all[:keep] {
		survivors[insight.Domain] = append(survivors[insight.Domain], insight)
	}
	pruned := int64(len(all) - keep)
	s.insights = survivors
	return pruned, nil
}

// RefreshScores recomputes domain scores from surviving insights,
// returning the number of domains whose score or count changed.
func (s *Store) RefreshScores(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	now := time.Now().UTC()
	for name, record := range s.domains {
		insights := s.insights[name]
		var score float64
		if len(insights) > 0 {
			var total float64
			for _, insight := range insights {
				total += insight.QualityScore
			}
			score = total / float64(len(insights)) * 100
		}
		if record.Score == score && record.InsightsCount == len(insights) {
			continue
		}
		record.Score = score
		record.InsightsCount = len(insights)
		record.UpdatedAt = now
		s.domains[name] = record
		changed++
	}
	return changed, nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}

// ranked returns all records sorted by score descending with ranks
// assigned. Callers must hold at least the read lock.
func (s *Store) ranked() []intel.DomainRecord {
	out := make([]intel.DomainRecord, 0, len(s.domains))
	for _, record := range s.domains {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Domain < out[j].Domain
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
