// Package frame provides an insertion-ordered mapping from a channel or
// table name to a typed slice of rows.
package frame

// Set maps names to rows and iterates in insertion order.
type Set[T any] struct {
	names []string
	rows  map[string][]T
}

// New creates an empty set.
func New[T any]() *Set[T] {
	return &Set[T]{rows: make(map[string][]T)}
}

// Put stores rows under name, replacing any previous value but keeping its position.
func (s *Set[T]) Put(name string, rows []T) {
	if _, ok := s.rows[name]; !ok {
		s.names = append(s.names, name)
	}

	s.rows[name] = rows
}

// Append adds rows to the end of name's slice.
func (s *Set[T]) Append(name string, rows ...T) {
	s.Put(name, append(s.rows[name], rows...))
}

// Get returns the rows stored under name.
func (s *Set[T]) Get(name string) ([]T, bool) {
	rows, ok := s.rows[name]

	return rows, ok
}

// Names returns the names in insertion order.
func (s *Set[T]) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)

	return out
}

// Len returns the number of names.
func (s *Set[T]) Len() int {
	return len(s.names)
}

// Rows returns the total number of rows across all names.
func (s *Set[T]) Rows() int {
	total := 0
	for _, rows := range s.rows {
		total += len(rows)
	}

	return total
}

// Each calls fn for every name in insertion order.
func (s *Set[T]) Each(fn func(name string, rows []T)) {
	for _, name := range s.names {
		fn(name, s.rows[name])
	}
}

// Filter returns a new set holding, per name, the rows keep accepts.
// Names whose rows are all rejected are kept with an empty slice.
func Filter[T any](s *Set[T], keep func(T) bool) *Set[T] {
	out := New[T]()

	s.Each(func(name string, rows []T) {
		kept := make([]T, 0, len(rows))

		for _, row := range rows {
			if keep(row) {
				kept = append(kept, row)
			}
		}

		out.Put(name, kept)
	})

	return out
}
