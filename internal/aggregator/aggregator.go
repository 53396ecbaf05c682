// Package aggregator produces the filtered, sorted conversation list of a user.
package aggregator

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
)

// Filter selects conversations by status
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterClosed    Filter = "closed"
	FilterCancelled Filter = "cancelled"
)

// ParseFilter accepts the query value of ?filter=, empty meaning all
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterClosed, FilterCancelled:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q", common.ErrValidationFailed, s)
	}
}

func (f Filter) matches(s domain.ConversationStatus) bool {
	return f == FilterAll || domain.ConversationStatus(f) == s
}

// List yields the summaries matching filter and searchText, most recent first.
// The sequence is re-derived from summaries on every iteration and never
// modifies the input slice.
func List(summaries []domain.ConversationSummary, filter Filter, searchText string) iter.Seq[domain.ConversationSummary] {
	needle := strings.ToLower(strings.TrimSpace(searchText))
	return func(yield func(domain.ConversationSummary) bool) {
		sorted := slices.Clone(summaries)
		SortByRecency(sorted)
		for _, s := range sorted {
			if !filter.matches(s.Status) || !matchesSearch(s, needle) {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// Collect materializes List
func Collect(summaries []domain.ConversationSummary, filter Filter, searchText string) []domain.ConversationSummary {
	out := []domain.ConversationSummary{}
	for s := range List(summaries, filter, searchText) {
		out = append(out, s)
	}
	return out
}

// SortByRecency sorts in place by updatedAt descending, id ascending on ties
func SortByRecency(summaries []domain.ConversationSummary) {
	slices.SortStableFunc(summaries, func(a, b domain.ConversationSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func matchesSearch(s domain.ConversationSummary, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.CounterpartName), needle) {
		return true
	}
	return s.LastMessage != nil && strings.Contains(strings.ToLower(s.LastMessage.Content), needle)
}
