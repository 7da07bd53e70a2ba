package tracer

// registry is a per-trace handle arena. Handles start at 1 and are never
// reused while the trace lives; 0 means "no handle". Entries stay for the
// trace lifetime, resolution of freed objects is rejected at lookup rather
// than by compaction.
type registry[T any] struct {
	next    int
	entries map[int]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{
		next:    1,
		entries: make(map[int]T),
	}
}

// register 入表，分配下一个句柄
func (g *registry[T]) register(obj T) int {
	h := g.next
	g.next++
	g.entries[h] = obj
	return h
}

func (g *registry[T]) resolve(h int) (T, bool) {
	obj, ok := g.entries[h]
	return obj, ok
}
