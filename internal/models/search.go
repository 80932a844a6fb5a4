package models

import "time"

// SearchStatus narrows announcements by publication state.
type SearchStatus string

const (
	SearchStatusAll       SearchStatus = "all"
	SearchStatusActive    SearchStatus = "active"
	SearchStatusScheduled SearchStatus = "scheduled"
	SearchStatusExpired   SearchStatus = "expired"
)

// Valid reports whether the status is one of the known values.
func (s SearchStatus) Valid() bool {
	switch s {
	case SearchStatusAll, SearchStatusActive, SearchStatusScheduled, SearchStatusExpired:
		return true
	}
	return false
}

// SearchSort selects the ordering key inside each pin partition.
type SearchSort string

const (
	SearchSortDate      SearchSort = "date"
	SearchSortRelevance SearchSort = "relevance"
	SearchSortReactions SearchSort = "reactions"
	SearchSortComments  SearchSort = "comments"
)

// Valid reports whether the sort key is one of the known values.
func (s SearchSort) Valid() bool {
	switch s {
	case SearchSortDate, SearchSortRelevance, SearchSortReactions, SearchSortComments:
		return true
	}
	return false
}

// SearchFilters is the filter state applied to the announcement list.
// Nil pointers and empty strings mean "no constraint"; an explicit false on
// HasAttachments or IsImportant constrains to false.
type SearchFilters struct {
	Query          string       `json:"query"`
	Category       string       `json:"category"`
	DateFrom       *time.Time   `json:"date_from,omitempty"`
	DateTo         *time.Time   `json:"date_to,omitempty"`
	Author         string       `json:"author"`
	HasAttachments *bool        `json:"has_attachments,omitempty"`
	IsImportant    *bool        `json:"is_important,omitempty"`
	Status         SearchStatus `json:"status"`
	SortBy         SearchSort   `json:"sort_by"`
}

// DefaultSearchFilters returns the filter state used on init and by clear.
func DefaultSearchFilters() SearchFilters {
	return SearchFilters{
		Status: SearchStatusAll,
		SortBy: SearchSortDate,
	}
}

// Equal compares two filter states field by field.
func (f SearchFilters) Equal(other SearchFilters) bool {
	return f.Query == other.Query &&
		f.Category == other.Category &&
		equalTime(f.DateFrom, other.DateFrom) &&
		equalTime(f.DateTo, other.DateTo) &&
		f.Author == other.Author &&
		equalBool(f.HasAttachments, other.HasAttachments) &&
		equalBool(f.IsImportant, other.IsImportant) &&
		f.Status == other.Status &&
		f.SortBy == other.SortBy
}

// Clone returns a copy that shares no pointers with f.
func (f SearchFilters) Clone() SearchFilters {
	out := f
	if f.DateFrom != nil {
		v := *f.DateFrom
		out.DateFrom = &v
	}
	if f.DateTo != nil {
		v := *f.DateTo
		out.DateTo = &v
	}
	if f.HasAttachments != nil {
		v := *f.HasAttachments
		out.HasAttachments = &v
	}
	if f.IsImportant != nil {
		v := *f.IsImportant
		out.IsImportant = &v
	}
	return out
}

// SearchResult wraps an announcement with the score of the current query.
// RelevanceScore is nil when no query was applied.
type SearchResult struct {
	Announcement
	RelevanceScore *int `json:"relevance_score,omitempty"`
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
