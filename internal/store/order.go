// ABOUTME: In-process ordering of documents for backends without SQL ordering
// ABOUTME: Mirrors SQLite's json_extract ordering: null < bool/number < string

package store

import (
	"cmp"
	"slices"
)

// sequenced pairs a document with its insertion sequence for stable ties.
type sequenced struct {
	doc Document
	seq int64
}

// sortDocuments orders docs by the query's field, breaking ties by insertion
// sequence in the same direction.
func sortDocuments(docs []sequenced, q Query) []Document {
	slices.SortStableFunc(docs, func(a, b sequenced) int {
		c := 0
		if q.OrderBy != "" {
			c = compareValues(a.doc.Fields[q.OrderBy], b.doc.Fields[q.OrderBy])
		}
		if c == 0 {
			c = cmp.Compare(a.seq, b.seq)
		}
		if q.descending() {
			return -c
		}
		return c
	})

	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = d.doc
	}
	return out
}

// typeRank groups JSON values the way SQLite orders json_extract results.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool, float64, int, int64:
		return 1
	case string:
		return 2
	default:
		return 3
	}
}

func numeric(v any) float64 {
	switch n := v.(type) {
	case bool:
		if n {
			return 1
		}
		return 0
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// compareValues compares two decoded JSON values.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 1:
		return cmp.Compare(numeric(a), numeric(b))
	case 2:
		return cmp.Compare(a.(string), b.(string))
	}
	return 0
}
