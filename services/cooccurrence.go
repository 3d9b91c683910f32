package services

import (
	"slices"
	"sort"
)

// Pair ist eine ungerichtete Kante. Source ist immer lexikographisch kleiner als Target.
type Pair struct {
	Source string
	Target string
}

// Edge ist eine gewichtete Kante des Kookkurrenz-Graphen.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// CooccurrenceGraph zählt, in wie vielen Papers zwei Fields of Study gemeinsam vorkommen.
func CooccurrenceGraph(papers [][]string) map[Pair]int {
	graph := make(map[Pair]int)
	for _, fos := range papers {
		names := slices.Clone(fos)
		slices.Sort(names)
		names = slices.Compact(names)
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				graph[Pair{Source: names[i], Target: names[j]}]++
			}
		}
	}
	return graph
}

// Edges gibt die Kanten mit einem Gewicht größer minWeight zurück, absteigend nach Gewicht.
func Edges(graph map[Pair]int, minWeight int) []Edge {
	edges := make([]Edge, 0, len(graph))
	for p, w := range graph {
		if w > minWeight {
			edges = append(edges, Edge{Source: p.Source, Target: p.Target, Weight: w})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}
