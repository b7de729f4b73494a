package store

// Entity is the stored state of a single ranked entity.
//
// Series maps a series key (for example "access") to its samples, oldest
// first. Labels are the x-axis labels aligned with the samples. Handle is an
// opaque render resource owned by whoever attached it; the store never
// inspects it.
type Entity struct {
	Name   string
	Logo   string
	Series map[string][]float64
	Labels []string
	Handle any
}

// Len returns the number of samples in the entity's series.
// All series of a reconciled entity share this length.
func (e *Entity) Len() int {
	for _, s := range e.Series {
		return len(s)
	}
	return len(e.Labels)
}

// Last returns the most recent sample of the named series.
// ok is false when the series is missing or empty.
func (e *Entity) Last(key string) (v float64, ok bool) {
	s := e.Series[key]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// Clone returns a deep copy of the entity. The handle is copied by reference.
func (e *Entity) Clone() Entity {
	series := make(map[string][]float64, len(e.Series))
	for k, v := range e.Series {
		series[k] = append([]float64(nil), v...)
	}
	return Entity{
		Name:   e.Name,
		Logo:   e.Logo,
		Series: series,
		Labels: append([]string(nil), e.Labels...),
		Handle: e.Handle,
	}
}

// Store is an insertion-ordered collection of entities keyed by name.
//
// The zero value is not usable; create one with [New]. Store is not safe for
// concurrent use.
type Store struct {
	entities map[string]*Entity
	order    []string
}

// New creates an empty [Store].
func New() *Store {
	return &Store{
		entities: make(map[string]*Entity),
	}
}

// Upsert inserts the entity if absent, otherwise replaces its series and
// labels in place. The logo is only refreshed when logo is non-empty. The
// entity keeps its insertion position and render handle.
//
// Upsert reports whether a new entity was inserted.
func (s *Store) Upsert(name string, series map[string][]float64, labels []string, logo string) bool {
	if e, ok := s.entities[name]; ok {
		e.Series = series
		e.Labels = labels
		if logo != "" {
			e.Logo = logo
		}
		return false
	}
	s.insert(name, series, labels, logo)
	return true
}

// Replace is like [Store.Upsert] but overwrites the logo unconditionally,
// including with the empty string.
func (s *Store) Replace(name string, series map[string][]float64, labels []string, logo string) bool {
	if e, ok := s.entities[name]; ok {
		e.Series = series
		e.Labels = labels
		e.Logo = logo
		return false
	}
	s.insert(name, series, labels, logo)
	return true
}

func (s *Store) insert(name string, series map[string][]float64, labels []string, logo string) {
	s.entities[name] = &Entity{
		Name:   name,
		Logo:   logo,
		Series: series,
		Labels: labels,
	}
	s.order = append(s.order, name)
}

// Remove deletes the entity and returns its render handle so the caller can
// release it. Removing an unknown name is a no-op and returns ok == false.
func (s *Store) Remove(name string) (handle any, ok bool) {
	e, ok := s.entities[name]
	if !ok {
		return nil, false
	}
	delete(s.entities, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return e.Handle, true
}

// Get returns the entity with the given name.
//
// The returned pointer aliases store state and is only valid until the next
// mutation.
func (s *Store) Get(name string) (*Entity, bool) {
	e, ok := s.entities[name]
	return e, ok
}

// SetHandle attaches a render handle to an existing entity.
// It reports false when the entity does not exist.
func (s *Store) SetHandle(name string, handle any) bool {
	e, ok := s.entities[name]
	if !ok {
		return false
	}
	e.Handle = handle
	return true
}

// All returns the entities in insertion order.
func (s *Store) All() []*Entity {
	out := make([]*Entity, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.entities[n])
	}
	return out
}

// Names returns the entity names in insertion order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of stored entities.
func (s *Store) Len() int {
	return len(s.order)
}
