package compiler

// chainMap is a layered map: lookups fall through to the parent layer,
// writes stay in the child. Nested compile contexts layer a fresh child
// so sibling sub-compilations never observe each other's overrides.
type chainMap[K comparable, V any] struct {
	parent *chainMap[K, V]
	m      map[K]V
}

func newChainMap[K comparable, V any]() *chainMap[K, V] {
	return &chainMap[K, V]{m: make(map[K]V)}
}

// NewChild layers a fresh writable scope over c.
func (c *chainMap[K, V]) NewChild() *chainMap[K, V] {
	return &chainMap[K, V]{parent: c, m: make(map[K]V)}
}

// Get returns the innermost binding for key.
func (c *chainMap[K, V]) Get(key K) (V, bool) {
	for layer := c; layer != nil; layer = layer.parent {
		if v, ok := layer.m[key]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Has reports whether key is bound in any layer.
func (c *chainMap[K, V]) Has(key K) bool {
	_, ok := c.Get(key)
	return ok
}

// Set binds key in the innermost layer.
func (c *chainMap[K, V]) Set(key K, v V) {
	c.m[key] = v
}
