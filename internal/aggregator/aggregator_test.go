package aggregator

import (
	"testing"
	"time"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaries() []domain.ConversationSummary {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.ConversationSummary{
		{ID: "c1", CounterpartName: "Clinic A", Status: domain.ConversationActive, UpdatedAt: t0.Add(1 * time.Hour),
			LastMessage: &domain.LastMessage{Content: "See you Monday"}},
		{ID: "c2", CounterpartName: "Clinic B", Status: domain.ConversationClosed, UpdatedAt: t0.Add(3 * time.Hour),
			LastMessage: &domain.LastMessage{Content: "Thanks for the shift"}},
		{ID: "c3", CounterpartName: "Hopital Nord", Status: domain.ConversationCancelled, UpdatedAt: t0.Add(2 * time.Hour)},
	}
}

func ids(list []domain.ConversationSummary) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func TestList_SortedByUpdatedAtDesc(t *testing.T) {
	got := Collect(summaries(), FilterAll, "")
	assert.Equal(t, []string{"c2", "c3", "c1"}, ids(got))
}

func TestList_StatusFilter(t *testing.T) {
	assert.Equal(t, []string{"c1"}, ids(Collect(summaries(), FilterActive, "")))
	assert.Equal(t, []string{"c2"}, ids(Collect(summaries(), FilterClosed, "")))
	assert.Equal(t, []string{"c3"}, ids(Collect(summaries(), FilterCancelled, "")))
}

func TestList_SearchCaseInsensitive(t *testing.T) {
	got := Collect(summaries(), FilterAll, "clinic a")
	assert.Equal(t, []string{"c1"}, ids(got))
}

func TestList_SearchMatchesLastMessage(t *testing.T) {
	got := Collect(summaries(), FilterAll, "SHIFT")
	assert.Equal(t, []string{"c2"}, ids(got))
}

func TestList_RestartableAndNonMutating(t *testing.T) {
	in := summaries()
	seq := List(in, FilterAll, "")

	var first, second []string
	for s := range seq {
		first = append(first, s.ID)
	}
	for s := range seq {
		second = append(second, s.ID)
	}
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids(in), "input order must be preserved")
}

func TestList_EarlyBreak(t *testing.T) {
	count := 0
	for range List(summaries(), FilterAll, "") {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	f, err = ParseFilter("Closed")
	require.NoError(t, err)
	assert.Equal(t, FilterClosed, f)

	_, err = ParseFilter("refused")
	assert.ErrorIs(t, err, common.ErrValidationFailed)
}
