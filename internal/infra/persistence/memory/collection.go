package memory

// collection keeps records keyed by id while preserving insertion order.
type collection[T any] struct {
	order []string
	items map[string]T
}

func newCollection[T any]() collection[T] {
	return collection[T]{items: make(map[string]T)}
}

func (c collection[T]) clone(cp func(T) T) collection[T] {
	out := collection[T]{
		order: append([]string(nil), c.order...),
		items: make(map[string]T, len(c.items)),
	}
	for id, v := range c.items {
		out.items[id] = cp(v)
	}
	return out
}

func (c collection[T]) get(id string) (T, bool) {
	v, ok := c.items[id]
	return v, ok
}

func (c collection[T]) has(id string) bool {
	_, ok := c.items[id]
	return ok
}

// put appends new ids and replaces existing ones in place.
func (c *collection[T]) put(id string, v T) {
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

func (c *collection[T]) remove(id string) (T, bool) {
	v, ok := c.items[id]
	if !ok {
		return v, false
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return v, true
}

// removeWhere deletes every record matching pred and returns them in order.
func (c *collection[T]) removeWhere(pred func(T) bool) []T {
	var removed []T
	kept := c.order[:0]
	for _, id := range c.order {
		v := c.items[id]
		if pred(v) {
			removed = append(removed, v)
			delete(c.items, id)
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return removed
}

// values returns cloned records in insertion order, filtered by keep when non-nil.
func (c collection[T]) values(cp func(T) T, keep func(T) bool) []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		v := c.items[id]
		if keep != nil && !keep(v) {
			continue
		}
		out = append(out, cp(v))
	}
	return out
}

func (c collection[T]) len() int { return len(c.order) }
