package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 100

	QueryParamPage  = "page"
	QueryParamLimit = "limit"
)

// Paginator turns a requested page and page size into a bounded query window.
type Paginator struct {
	Page  int
	Limit int
}

// Metadata describes a page of results.
type Metadata struct {
	TotalRecords int `json:"totalRecords"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	Page         int `json:"page"`
	Limit        int `json:"limit"`
}

// Page is one window of a filtered listing. Items is never nil.
type Page[T any] struct {
	Items    []T
	Metadata Metadata
}

// New clamps page and limit: values below 1 fall back to the defaults and
// limit is capped at MaxLimit.
func New(page, limit int) Paginator {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Paginator{Page: page, Limit: limit}
}

// FromQuery reads the page and limit query parameters. Missing or
// non-numeric values use the defaults.
func FromQuery(q url.Values) Paginator {
	return New(intParam(q, QueryParamPage, DefaultPage), intParam(q, QueryParamLimit, DefaultLimit))
}

func (p Paginator) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Paginator) Metadata(totalRecords int) Metadata {
	lastPage := 1
	if totalRecords > 0 {
		lastPage = (totalRecords + p.Limit - 1) / p.Limit
	}
	return Metadata{
		TotalRecords: totalRecords,
		FirstPage:    1,
		LastPage:     lastPage,
		Page:         p.Page,
		Limit:        p.Limit,
	}
}

// NewPage builds a page from the items of one window and the total number
// of matching records.
func NewPage[T any](items []T, totalRecords int, p Paginator) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Metadata: p.Metadata(totalRecords)}
}

func intParam(q url.Values, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
