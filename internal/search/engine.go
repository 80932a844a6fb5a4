// Package search derives the filtered, scored and sorted announcement view.
package search

import (
	"slices"
	"strings"
	"sync"

	"github.com/noah-isme/workhub-api/internal/models"
)

// Relevance weights per matched field.
const (
	titleWeight   = 10
	contentWeight = 5
	authorWeight  = 3
)

// score returns the relevance of a for needle, an already trimmed and
// lower-cased query, matched as a substring.
func score(a models.Announcement, needle string) int {
	if needle == "" {
		return 0
	}
	total := 0
	if strings.Contains(strings.ToLower(a.Title), needle) {
		total += titleWeight
	}
	if strings.Contains(strings.ToLower(a.Content), needle) {
		total += contentWeight
	}
	if strings.Contains(strings.ToLower(a.AuthorName), needle) {
		total += authorWeight
	}
	return total
}

// Apply runs text search, the predicate filters and the sort over a copy of
// source. The input slice is never reordered.
func Apply(source []models.Announcement, f models.SearchFilters) []models.SearchResult {
	needle := strings.ToLower(strings.TrimSpace(f.Query))
	results := make([]models.SearchResult, 0, len(source))
	for _, item := range source {
		result := models.SearchResult{Announcement: item}
		if needle != "" {
			s := score(item, needle)
			if s == 0 {
				continue
			}
			result.RelevanceScore = &s
		}
		if !matches(item, f) {
			continue
		}
		results = append(results, result)
	}
	sortResults(results, f.SortBy)
	return results
}

func matches(a models.Announcement, f models.SearchFilters) bool {
	if f.Category != "" && a.CategoryID != f.Category {
		return false
	}
	if f.DateFrom != nil && a.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && a.CreatedAt.After(*f.DateTo) {
		return false
	}
	if f.Author != "" && a.AuthorID != f.Author {
		return false
	}
	if f.HasAttachments != nil && a.HasAttachments != *f.HasAttachments {
		return false
	}
	if f.IsImportant != nil && a.IsImportant != *f.IsImportant {
		return false
	}
	switch f.Status {
	case models.SearchStatusActive:
		return a.Status == models.AnnouncementStatusPublished && !a.IsExpired
	case models.SearchStatusScheduled:
		return a.Status == models.AnnouncementStatusScheduled
	case models.SearchStatusExpired:
		return a.IsExpired
	}
	return true
}

// sortResults orders pinned items first, then by the chosen key descending.
// Equal keys fall back to newest first; equal timestamps keep input order.
func sortResults(results []models.SearchResult, by models.SearchSort) {
	slices.SortStableFunc(results, func(a, b models.SearchResult) int {
		if a.IsPinned != b.IsPinned {
			if a.IsPinned {
				return -1
			}
			return 1
		}
		switch by {
		case models.SearchSortRelevance:
			if c := descending(scoreOf(a), scoreOf(b)); c != 0 {
				return c
			}
		case models.SearchSortReactions:
			if c := descending(a.ReactionCount, b.ReactionCount); c != 0 {
				return c
			}
		case models.SearchSortComments:
			if c := descending(a.CommentCount, b.CommentCount); c != 0 {
				return c
			}
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func scoreOf(r models.SearchResult) int {
	if r.RelevanceScore == nil {
		return 0
	}
	return *r.RelevanceScore
}

func descending(a, b int) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

// Engine holds one session's filter state and the view derived from it. The
// view is recomputed from scratch whenever the source or the filters change.
type Engine struct {
	mu      sync.RWMutex
	source  []models.Announcement
	filters models.SearchFilters
	view    []models.SearchResult
}

// NewEngine starts an engine with default filters over source.
func NewEngine(source []models.Announcement) *Engine {
	e := &Engine{
		source:  slices.Clone(source),
		filters: models.DefaultSearchFilters(),
	}
	e.recompute()
	return e
}

// SetSource replaces the announcement list, e.g. after a feed refresh.
func (e *Engine) SetSource(source []models.Announcement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = slices.Clone(source)
	e.recompute()
}

// UpdateFilter replaces a single filter field and recomputes the view.
func (e *Engine) UpdateFilter(key FilterKey, value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := Set(e.filters, key, value)
	if err != nil {
		return err
	}
	e.filters = next
	e.recompute()
	return nil
}

// ClearFilters restores the default filter state.
func (e *Engine) ClearFilters() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters = models.DefaultSearchFilters()
	e.recompute()
}

// Filters returns a copy of the current filter state.
func (e *Engine) Filters() models.SearchFilters {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filters.Clone()
}

// FilteredAnnouncements returns the derived view.
func (e *Engine) FilteredAnnouncements() []models.SearchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.view)
}

// HasActiveFilters reports whether any filter differs from its default.
func (e *Engine) HasActiveFilters() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return HasActiveFilters(e.filters)
}

// State is a consistent capture of an engine's filters and view.
type State struct {
	Results          []models.SearchResult
	Filters          models.SearchFilters
	HasActiveFilters bool
}

// State captures the view and the filters that produced it in one read.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Results:          slices.Clone(e.view),
		Filters:          e.filters.Clone(),
		HasActiveFilters: HasActiveFilters(e.filters),
	}
}

func (e *Engine) recompute() {
	e.view = Apply(e.source, e.filters)
}
