package lifecycle

type record interface {
	RecordID() string
}

// Collection holds one entity type ordered most-recently-created first, with
// an id index over the ordered slice. Links between collections are ids
// resolved through the index, never pointers.
type Collection[T record] struct {
	items    []T
	index    map[string]int
	selected string
	clone    func(T) T
}

func newCollection[T record](clone func(T) T) Collection[T] {
	return Collection[T]{index: make(map[string]int), clone: clone}
}

func (c *Collection[T]) reindex() {
	c.index = make(map[string]int, len(c.items))
	for i, item := range c.items {
		c.index[item.RecordID()] = i
	}
}

// insert places v at the head. A record already present under the same id is
// dropped first so the index stays unique.
func (c *Collection[T]) insert(v T) (previous T, replaced bool) {
	id := v.RecordID()
	if pos, ok := c.index[id]; ok {
		previous, replaced = c.items[pos], true
		c.items = append(c.items[:pos], c.items[pos+1:]...)
	}
	c.items = append([]T{c.clone(v)}, c.items...)
	c.reindex()
	return previous, replaced
}

// replace swaps the record with v's id in place. Unknown ids are a no-op.
func (c *Collection[T]) replace(v T) (before T, ok bool) {
	pos, ok := c.index[v.RecordID()]
	if !ok {
		return before, false
	}
	before = c.items[pos]
	c.items[pos] = c.clone(v)
	return before, true
}

// mutate applies fn to the stored record with id. Unknown ids are a no-op.
func (c *Collection[T]) mutate(id string, fn func(*T)) (before, after T, ok bool) {
	pos, ok := c.index[id]
	if !ok {
		return before, after, false
	}
	before = c.clone(c.items[pos])
	fn(&c.items[pos])
	return before, c.clone(c.items[pos]), true
}

// remove deletes the record with id and clears the selection if it pointed
// at it.
func (c *Collection[T]) remove(id string) (removed T, ok bool) {
	pos, ok := c.index[id]
	if !ok {
		return removed, false
	}
	removed = c.items[pos]
	c.items = append(c.items[:pos], c.items[pos+1:]...)
	c.reindex()
	if c.selected == id {
		c.selected = ""
	}
	return removed, true
}

// reset replaces the whole collection with items in the given order.
func (c *Collection[T]) reset(items []T) {
	c.items = make([]T, 0, len(items))
	for _, item := range items {
		c.items = append(c.items, c.clone(item))
	}
	c.reindex()
	if _, ok := c.index[c.selected]; !ok {
		c.selected = ""
	}
}

func (c *Collection[T]) find(id string) (T, bool) {
	pos, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.clone(c.items[pos]), true
}

func (c *Collection[T]) list() []T {
	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, c.clone(item))
	}
	return out
}

func (c *Collection[T]) filter(keep func(T) bool) []T {
	var out []T
	for _, item := range c.items {
		if keep(item) {
			out = append(out, c.clone(item))
		}
	}
	return out
}

func (c *Collection[T]) copyOf() Collection[T] {
	cp := Collection[T]{selected: c.selected, clone: c.clone}
	cp.reset(c.items)
	cp.selected = c.selected
	return cp
}

// Len returns the number of records held.
func (c *Collection[T]) Len() int { return len(c.items) }

// Selected returns the selected record id, if any.
func (c *Collection[T]) Selected() string { return c.selected }
