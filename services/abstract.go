package services

import (
	"sort"
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"ci-mapping/providers/mag"
)

var ligatures = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬆ", "st",
)

// RebuildAbstract setzt den Abstract aus dem invertierten Index zusammen.
// Positionen ohne Token werden übersprungen. Belegen mehrere Tokens dieselbe Position,
// gewinnt das lexikographisch kleinste.
func RebuildAbstract(ia *mag.InvertedAbstract) string {
	if ia == nil || len(ia.InvertedIndex) == 0 {
		return ""
	}
	tokens := make([]string, 0, len(ia.InvertedIndex))
	for token := range ia.InvertedIndex {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	byPos := make(map[int]string)
	for _, token := range tokens {
		for _, p := range ia.InvertedIndex[token] {
			if _, taken := byPos[p]; p < 0 || taken {
				continue
			}
			byPos[p] = token
		}
	}
	positions := make([]int, 0, len(byPos))
	for p := range byPos {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	words := make([]string, 0, len(positions))
	for _, p := range positions {
		words = append(words, byPos[p])
	}
	return normalizeText(strings.Join(words, " "))
}

// normalizeText ersetzt Ligaturen und führt NFC-Normalisierung durch.
func normalizeText(s string) string {
	s = ligatures.Replace(s)
	normalized, _, _ := transform.String(transform.Chain(norm.NFC), s)
	return normalized
}
