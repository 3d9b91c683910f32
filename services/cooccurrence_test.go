package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCooccurrenceGraph(t *testing.T) {
	t.Run("counts sorted pairs", func(t *testing.T) {
		got := CooccurrenceGraph([][]string{{"a", "b"}, {"a", "b", "c"}})
		assert.Equal(t, map[Pair]int{
			{Source: "a", Target: "b"}: 2,
			{Source: "a", Target: "c"}: 1,
			{Source: "b", Target: "c"}: 1,
		}, got)
	})

	t.Run("order within a paper does not matter", func(t *testing.T) {
		got := CooccurrenceGraph([][]string{{"b", "a"}, {"a", "b"}})
		assert.Equal(t, map[Pair]int{{Source: "a", Target: "b"}: 2}, got)
	})

	t.Run("repeated names count once per paper", func(t *testing.T) {
		got := CooccurrenceGraph([][]string{{"a", "b", "a"}})
		assert.Equal(t, map[Pair]int{{Source: "a", Target: "b"}: 1}, got)
	})

	t.Run("single field gives no edges", func(t *testing.T) {
		assert.Empty(t, CooccurrenceGraph([][]string{{"a"}, nil}))
	})
}

func TestEdges(t *testing.T) {
	graph := map[Pair]int{
		{Source: "a", Target: "b"}: 20,
		{Source: "a", Target: "c"}: 15,
		{Source: "b", Target: "c"}: 16,
	}
	assert.Equal(t, []Edge{
		{Source: "a", Target: "b", Weight: 20},
		{Source: "b", Target: "c", Weight: 16},
	}, Edges(graph, 15))
	assert.Len(t, Edges(graph, 0), 3)
}
