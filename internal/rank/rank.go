// Package rank orders the entities of a store by their latest sample.
//
// Ranking is a pure function of the store: every call rebuilds the ordering
// from scratch and nothing is retained between calls. Ties are broken by the
// store's insertion order so repeated calls over unchanged input always
// produce the same list.
package rank

import (
	"math"
	"sort"

	"github.com/jpalmerr/rankboard/internal/store"
)

// Node is the ranked projection of one entity.
type Node struct {
	Name  string  `json:"name"`
	Logo  string  `json:"logo"`
	Value float64 `json:"value"`
}

// Result is the outcome of a ranking pass.
//
// Ordered is sorted by Value, highest first. Top points at Ordered[0], or is
// nil when no entity could be ranked.
type Result struct {
	Top     *Node  `json:"top"`
	Ordered []Node `json:"ordered"`
}

// Rank ranks every entity of st by the last sample of seriesKey.
//
// Entities whose series is missing or empty are excluded, as are NaN and
// infinite samples.
// An empty store yields a nil Top and an empty Ordered.
func Rank(st *store.Store, seriesKey string) Result {
	entities := st.All()
	nodes := make([]Node, 0, len(entities))
	for _, e := range entities {
		v, ok := e.Last(seriesKey)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		nodes = append(nodes, Node{Name: e.Name, Logo: e.Logo, Value: v})
	}

	// stable sort keeps insertion order among equal values
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Value > nodes[j].Value
	})

	res := Result{Ordered: nodes}
	if len(nodes) > 0 {
		res.Top = &res.Ordered[0]
	}
	return res
}

// TopK returns the first k nodes of the result. A k of zero or less returns
// every node. The returned slice is a copy.
func TopK(res Result, k int) []Node {
	n := len(res.Ordered)
	if k > 0 && k < n {
		n = k
	}
	out := make([]Node, n)
	copy(out, res.Ordered[:n])
	return out
}
