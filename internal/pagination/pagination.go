package pagination

import "math"

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (Page-1)*Limit within int for any valid limit.
	MaxPage = math.MaxInt32
)

type Params struct {
	Page  int
	Limit int
}

// Normalize clamps page to 1..MaxPage and limit to 1..100, defaulting to 10.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		p.Limit = DefaultLimit
	}
	return p
}

func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

type Page[T any] struct {
	Items       []T   `json:"items"`
	TotalItems  int64 `json:"totalItems"`
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

func NewPage[T any](items []T, total int64, p Params) *Page[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	totalPages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return &Page[T]{
		Items:       items,
		TotalItems:  total,
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		HasNextPage: p.Page < totalPages,
		HasPrevPage: p.Page > 1,
	}
}

// Slice pages an in-memory list.
func Slice[T any](all []T, p Params) *Page[T] {
	p = p.Normalize()
	start := p.Offset()
	if start < 0 || start > len(all) {
		start = len(all)
	}
	end := start + p.Limit
	if end > len(all) {
		end = len(all)
	}
	items := make([]T, end-start)
	copy(items, all[start:end])
	return NewPage(items, int64(len(all)), p)
}
