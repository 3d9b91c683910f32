package services

// UniqueRecords entfernt vollständig identische Datensätze. Die erste Fundstelle bleibt in ihrer Position.
func UniqueRecords[T comparable](records []T) []T {
	seen := make(map[T]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// UniqueByKey behält genau einen Datensatz pro Schlüssel. Bei Duplikaten gewinnt der zuletzt gesehene,
// die Position ist die des ersten Auftretens.
func UniqueByKey[T any, K comparable](records []T, key func(T) K) []T {
	index := make(map[K]int, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		k := key(r)
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// ExcludeExisting entfernt alle Datensätze, deren Schlüssel bereits gespeichert ist.
func ExcludeExisting[T any, K comparable](records []T, key func(T) K, existing map[K]struct{}) []T {
	if len(existing) == 0 {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if _, ok := existing[key(r)]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Dedupe wendet die drei Schritte in fester Reihenfolge an.
func Dedupe[T comparable, K comparable](records []T, key func(T) K, existing map[K]struct{}) []T {
	return ExcludeExisting(UniqueByKey(UniqueRecords(records), key), key, existing)
}
