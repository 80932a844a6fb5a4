package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/workhub-api/internal/models"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
)

// FilterKey names a single field of the filter state.
type FilterKey string

const (
	KeyQuery          FilterKey = "query"
	KeyCategory       FilterKey = "category"
	KeyDateFrom       FilterKey = "dateFrom"
	KeyDateTo         FilterKey = "dateTo"
	KeyAuthor         FilterKey = "author"
	KeyHasAttachments FilterKey = "hasAttachments"
	KeyIsImportant    FilterKey = "isImportant"
	KeyStatus         FilterKey = "status"
	KeySortBy         FilterKey = "sortBy"
)

// FilterKeys lists every settable key in a stable order.
func FilterKeys() []FilterKey {
	return []FilterKey{
		KeyQuery, KeyCategory, KeyDateFrom, KeyDateTo, KeyAuthor,
		KeyHasAttachments, KeyIsImportant, KeyStatus, KeySortBy,
	}
}

const dateOnly = "2006-01-02"

// HasActiveFilters is true when any field differs from DefaultSearchFilters.
func HasActiveFilters(f models.SearchFilters) bool {
	return !f.Equal(models.DefaultSearchFilters())
}

// Set returns a copy of f with one field replaced. Values are coerced from
// their natural Go type or from the string form used by query params and
// websocket frames. Ranges are not checked: a dateTo before dateFrom is kept.
func Set(f models.SearchFilters, key FilterKey, value interface{}) (models.SearchFilters, error) {
	out := f.Clone()
	var err error
	switch key {
	case KeyQuery:
		out.Query, err = toString(key, value)
	case KeyCategory:
		out.Category, err = toString(key, value)
	case KeyAuthor:
		out.Author, err = toString(key, value)
	case KeyDateFrom:
		out.DateFrom, err = toTime(key, value, false)
	case KeyDateTo:
		out.DateTo, err = toTime(key, value, true)
	case KeyHasAttachments:
		out.HasAttachments, err = toBool(key, value)
	case KeyIsImportant:
		out.IsImportant, err = toBool(key, value)
	case KeyStatus:
		out.Status, err = toStatus(value)
	case KeySortBy:
		out.SortBy, err = toSort(value)
	default:
		return f, invalid("unknown filter %q", key)
	}
	if err != nil {
		return f, err
	}
	return out, nil
}

// ParseDate accepts RFC3339 timestamps or YYYY-MM-DD dates. A date-only value
// resolves to the start of the day, or to its last instant when endOfDay is set.
func ParseDate(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func toString(key FilterKey, value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case *string:
		if v == nil {
			return "", nil
		}
		return *v, nil
	default:
		return "", invalid("%s expects a string, got %T", key, value)
	}
}

func toTime(key FilterKey, value interface{}, endOfDay bool) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		t := *v
		return &t, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		t, err := ParseDate(v, endOfDay)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("%s must be RFC3339 or YYYY-MM-DD", key))
		}
		return &t, nil
	default:
		return nil, invalid("%s expects a date, got %T", key, value)
	}
}

func toBool(key FilterKey, value interface{}) (*bool, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return &v, nil
	case *bool:
		if v == nil {
			return nil, nil
		}
		b := *v
		return &b, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, invalid("%s must be true or false", key)
		}
		return &b, nil
	default:
		return nil, invalid("%s expects a boolean, got %T", key, value)
	}
}

func toStatus(value interface{}) (models.SearchStatus, error) {
	var status models.SearchStatus
	switch v := value.(type) {
	case models.SearchStatus:
		status = v
	case string:
		status = models.SearchStatus(strings.ToLower(strings.TrimSpace(v)))
	default:
		return "", invalid("status expects a string, got %T", value)
	}
	if !status.Valid() {
		return "", invalid("status must be one of all, active, scheduled, expired")
	}
	return status, nil
}

func toSort(value interface{}) (models.SearchSort, error) {
	var sortBy models.SearchSort
	switch v := value.(type) {
	case models.SearchSort:
		sortBy = v
	case string:
		sortBy = models.SearchSort(strings.ToLower(strings.TrimSpace(v)))
	default:
		return "", invalid("sortBy expects a string, got %T", value)
	}
	if !sortBy.Valid() {
		return "", invalid("sortBy must be one of date, relevance, reactions, comments")
	}
	return sortBy, nil
}

func invalid(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(format, args...))
}
