// Package reconcile merges full snapshot batches into an entity store.
//
// A batch is always a complete listing of the known entities. Reconciliation
// replaces every entity present in the batch, inserts the ones the store has
// not seen, and removes every stored entity the batch omits. The batch is
// validated as a whole before the store is touched, so a rejected batch leaves
// no partial state behind.
package reconcile

import (
	"errors"
	"fmt"
	"math"

	"github.com/jpalmerr/rankboard/internal/store"
)

var (
	// ErrMissingName is returned for a record without a name.
	ErrMissingName = errors.New("name is required")

	// ErrLengthMismatch is returned when a record's series differ in length.
	ErrLengthMismatch = errors.New("series lengths differ")

	// ErrLabelMismatch is returned when labels are present but not aligned
	// with the series samples.
	ErrLabelMismatch = errors.New("labels length does not match series length")

	// ErrUnknownSeries is returned when a record carries a series key outside
	// the configured set.
	ErrUnknownSeries = errors.New("unknown series key")

	// ErrNonFinite is returned when a sample is NaN or infinite.
	ErrNonFinite = errors.New("sample is not a finite number")
)

// Delta describes what a reconciliation did to the store.
//
// Changed lists every name present in the batch, in batch order, whether or
// not its values differed. Added is the subset of Changed that was inserted.
// Removed lists the names dropped from the store, and Released carries the
// render handle each removed entity held (only for non-nil handles). The
// caller owns the released handles.
type Delta struct {
	Changed  []string
	Added    []string
	Removed  []string
	Released map[string]any
}

// Empty reports whether the reconciliation neither changed nor removed anything.
func (d Delta) Empty() bool {
	return len(d.Changed) == 0 && len(d.Removed) == 0
}

// Reconciler applies snapshot batches to a store.
//
// A Reconciler built with series keys rejects records carrying any other key.
// The zero value accepts any key.
type Reconciler struct {
	keys map[string]struct{}
}

// New creates a [Reconciler] restricted to the given series keys.
// With no keys, any series key is accepted.
func New(keys ...string) *Reconciler {
	r := &Reconciler{}
	if len(keys) > 0 {
		r.keys = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			r.keys[k] = struct{}{}
		}
	}
	return r
}

// Reconcile applies batch to st with an unrestricted [Reconciler].
func Reconcile(st *store.Store, batch []Record) (Delta, error) {
	return New().Reconcile(st, batch)
}

// Reconcile applies batch to st.
//
// Records with a duplicate name are resolved last-write-wins; the entity keeps
// the position of the name's first occurrence. Records are copied, so the
// caller may reuse the batch afterwards.
func (r *Reconciler) Reconcile(st *store.Store, batch []Record) (Delta, error) {
	if err := r.Validate(batch); err != nil {
		return Delta{}, err
	}

	// collapse duplicates: remember first position, keep last record
	latest := make(map[string]int, len(batch))
	order := make([]string, 0, len(batch))
	for i, rec := range batch {
		if _, seen := latest[rec.Name]; !seen {
			order = append(order, rec.Name)
		}
		latest[rec.Name] = i
	}

	delta := Delta{
		Changed: make([]string, 0, len(order)),
	}
	for _, name := range order {
		rec := batch[latest[name]]
		series, labels := normalize(rec)
		if st.Replace(name, series, labels, rec.Logo) {
			delta.Added = append(delta.Added, name)
		}
		delta.Changed = append(delta.Changed, name)
	}

	for _, name := range st.Names() {
		if _, keep := latest[name]; keep {
			continue
		}
		handle, _ := st.Remove(name)
		delta.Removed = append(delta.Removed, name)
		if handle != nil {
			if delta.Released == nil {
				delta.Released = make(map[string]any)
			}
			delta.Released[name] = handle
		}
	}

	return delta, nil
}

// Validate checks every record of the batch without mutating anything.
//
// Errors are wrapped with the record index and name, for example
// "records[2] (GitHub): series lengths differ".
func (r *Reconciler) Validate(batch []Record) error {
	for i, rec := range batch {
		if rec.Name == "" {
			return fmt.Errorf("records[%d]: %w", i, ErrMissingName)
		}

		n := -1
		for _, k := range rec.Keys() {
			if r.keys != nil {
				if _, ok := r.keys[k]; !ok {
					return fmt.Errorf("records[%d] (%s): %w %q", i, rec.Name, ErrUnknownSeries, k)
				}
			}
			for j, v := range rec.Series[k] {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("records[%d] (%s): %w: %q[%d] = %v", i, rec.Name, ErrNonFinite, k, j, v)
				}
			}
			if n == -1 {
				n = len(rec.Series[k])
				continue
			}
			if len(rec.Series[k]) != n {
				return fmt.Errorf("records[%d] (%s): %w: %q has %d samples, want %d",
					i, rec.Name, ErrLengthMismatch, k, len(rec.Series[k]), n)
			}
		}

		if rec.Labels != nil && n != -1 && len(rec.Labels) != n {
			return fmt.Errorf("records[%d] (%s): %w: %d labels for %d samples",
				i, rec.Name, ErrLabelMismatch, len(rec.Labels), n)
		}
	}
	return nil
}

// normalize copies the record's series and fills in default labels.
func normalize(rec Record) (map[string][]float64, []string) {
	series := make(map[string][]float64, len(rec.Series))
	n := -1
	for k, s := range rec.Series {
		series[k] = append([]float64(nil), s...)
		n = len(s)
	}

	var labels []string
	switch {
	case rec.Labels != nil:
		labels = append([]string(nil), rec.Labels...)
	case n > 0:
		labels = make([]string, n)
	default:
		labels = []string{}
	}
	return series, labels
}

// Names returns the distinct names of a batch in first-occurrence order.
func Names(batch []Record) []string {
	seen := make(map[string]struct{}, len(batch))
	out := make([]string, 0, len(batch))
	for _, rec := range batch {
		if _, ok := seen[rec.Name]; ok {
			continue
		}
		seen[rec.Name] = struct{}{}
		out = append(out, rec.Name)
	}
	return out
}
