package rankboard

import (
	"time"

	"github.com/jpalmerr/rankboard/internal/board"
	"github.com/jpalmerr/rankboard/internal/rank"
	"github.com/jpalmerr/rankboard/internal/reconcile"
)

// Record is one entity in a snapshot batch.
//
// On the wire a record is a flat JSON object: "name", "logo" and "labels"
// are reserved, every other array-valued member is a series keyed by its
// member name.
//
//	{"name": "Google", "logo": "https://...", "access": [3.2, 3.3], "labels": ["", "Now"]}
type Record = reconcile.Record

// Sentinel errors returned when a batch is rejected. Test with [errors.Is].
var (
	ErrMissingName    = reconcile.ErrMissingName
	ErrLengthMismatch = reconcile.ErrLengthMismatch
	ErrLabelMismatch  = reconcile.ErrLabelMismatch
	ErrUnknownSeries  = reconcile.ErrUnknownSeries
	ErrNonFinite      = reconcile.ErrNonFinite
)

// IsReservedKey reports whether key is a record field name ("name", "logo",
// "labels", "series" or "chart") and therefore unusable as a series key.
func IsReservedKey(key string) bool {
	return reconcile.IsReserved(key)
}

// RankedNode is one entity in a ranking.
//
// Rank is 1-based. Value is the entity's latest sample of the ranked series.
type RankedNode struct {
	Rank  int
	Name  string
	Logo  string
	Value float64
}

// Update describes the board after one applied batch.
//
// Update is a value copy; callbacks may keep it without synchronisation.
type Update struct {
	// Seq increases by one for every applied batch.
	Seq uint64

	// Series is the ranking series.
	Series string

	// Top is the leading entity, or nil when the board is empty.
	Top *RankedNode

	// Ranking lists every ranked entity, best first.
	Ranking []RankedNode

	// Changed names every entity present in the batch.
	Changed []string

	// Added names entities that were not on the board before the batch.
	Added []string

	// Removed names entities absent from the batch.
	Removed []string

	// At is when the batch was applied.
	At time.Time
}

// toRanking converts ranked nodes into 1-based public nodes.
func toRanking(nodes []rank.Node) []RankedNode {
	out := make([]RankedNode, len(nodes))
	for i, n := range nodes {
		out[i] = RankedNode{Rank: i + 1, Name: n.Name, Logo: n.Logo, Value: n.Value}
	}
	return out
}

// frameToUpdate converts a board frame to the public type, copying slices so
// callbacks cannot alias board state.
func frameToUpdate(f board.Frame) Update {
	u := Update{
		Seq:     f.Seq,
		Series:  f.Series,
		Ranking: toRanking(f.Ordered),
		Changed: copyStrings(f.Changed),
		Added:   copyStrings(f.Added),
		Removed: copyStrings(f.Removed),
		At:      f.At,
	}
	if len(u.Ranking) > 0 {
		top := u.Ranking[0]
		u.Top = &top
	}
	return u
}

// copyStrings returns a copy of s, or nil if s is nil.
func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
