package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want Params
	}{
		{Params{Page: 0, Limit: 0}, Params{Page: 1, Limit: 10}},
		{Params{Page: -3, Limit: 101}, Params{Page: 1, Limit: 10}},
		{Params{Page: 2, Limit: 100}, Params{Page: 2, Limit: 100}},
		{Params{Page: 5, Limit: 1}, Params{Page: 5, Limit: 1}},
		{Params{Page: 1e18, Limit: 10}, Params{Page: MaxPage, Limit: 10}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.in.Normalize())
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2, 3}, 23, Params{Page: 2, Limit: 10})
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNextPage)
	assert.True(t, p.HasPrevPage)

	empty := NewPage[int](nil, 0, Params{})
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNextPage)
	assert.False(t, empty.HasPrevPage)
}

func TestSlice(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}
	p := Slice(all, Params{Page: 2, Limit: 2})
	assert.Equal(t, []int{3, 4}, p.Items)
	assert.Equal(t, int64(5), p.TotalItems)
	assert.Equal(t, 3, p.TotalPages)

	beyond := Slice(all, Params{Page: 9, Limit: 2})
	assert.Empty(t, beyond.Items)
	assert.False(t, beyond.HasNextPage)
}

func TestHugePageStaysPastTheEnd(t *testing.T) {
	p := Params{Page: 1e18, Limit: 10}
	assert.Positive(t, p.Offset())

	page := Slice([]int{1, 2, 3}, p)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(3), page.TotalItems)
	assert.False(t, page.HasNextPage)
	assert.True(t, page.HasPrevPage)
}
