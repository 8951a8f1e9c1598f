package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedQueryOffsets(t *testing.T) {
	tests := []struct {
		page  int
		limit int
		want  int
	}{
		{1, 10, 0},
		{2, 20, 20},
		{3, 10, 20},
		{5, 25, 100},
	}
	for _, tt := range tests {
		offset, _, err := feedQuery(tt.page, tt.limit, SortRecent)
		require.NoError(t, err)
		assert.Equal(t, tt.want, offset, "page=%d limit=%d", tt.page, tt.limit)
	}
}

func TestFeedQueryOrdering(t *testing.T) {
	_, order, err := feedQuery(1, 10, SortRecent)
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC", order)

	// An empty sort defaults to most recent first.
	_, order, err = feedQuery(1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC", order)

	_, order, err = feedQuery(1, 10, SortOldest)
	require.NoError(t, err)
	assert.Equal(t, "created_at ASC", order)

	_, order, err = feedQuery(1, 10, SortPopular)
	require.NoError(t, err)
	assert.Contains(t, order, "'likes'")

	_, order, err = feedQuery(1, 10, SortViewed)
	require.NoError(t, err)
	assert.Contains(t, order, "'views'")

	_, _, err = feedQuery(1, 10, "random")
	assert.Error(t, err)
}

func TestPages(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{95, 10, 10},
		{100, 10, 10},
		{101, 10, 11},
		{7, 3, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Pages(tt.total, tt.limit), "total=%d limit=%d", tt.total, tt.limit)
	}

	// Degenerate limits never divide by zero.
	assert.Equal(t, 0, Pages(50, 0))
	assert.Equal(t, 0, Pages(50, -1))
}
