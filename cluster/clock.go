package cluster

// Causality is the result of comparing two vector clocks.
type Causality int

const (
	// Equal means both clocks have identical counters.
	Equal Causality = iota
	// Before means the receiver causally precedes the argument.
	Before
	// After means the receiver causally follows the argument.
	After
	// Concurrent means neither clock dominates; the writes conflict.
	Concurrent
)

// VectorClock maps node IDs to monotonic counters, establishing causal
// order between replicas. The zero value is usable via make or Clone.
type VectorClock map[string]uint64

// NewVectorClock returns an empty clock.
func NewVectorClock() VectorClock {
	return make(VectorClock)
}

// Tick increments the counter for the given node.
func (v VectorClock) Tick(nodeID string) {
	v[nodeID]++
}

// Merge takes the element-wise maximum of both clocks into the receiver.
func (v VectorClock) Merge(other VectorClock) {
	for node, counter := range other {
		if counter > v[node] {
			v[node] = counter
		}
	}
}

// Clone returns an independent copy.
func (v VectorClock) Clone() VectorClock {
	c := make(VectorClock, len(v))
	for node, counter := range v {
		c[node] = counter
	}
	return c
}

// Compare establishes the causal relation between v and other.
func (v VectorClock) Compare(other VectorClock) Causality {
	var less, greater bool
	for node := range union(v, other) {
		a, b := v[node], other[node]
		if a < b {
			less = true
		}
		if a > b {
			greater = true
		}
	}
	switch {
	case less && greater:
		return Concurrent
	case less:
		return Before
	case greater:
		return After
	}
	return Equal
}

func union(a, b VectorClock) map[string]struct{} {
	nodes := make(map[string]struct{}, len(a)+len(b))
	for node := range a {
		nodes[node] = struct{}{}
	}
	for node := range b {
		nodes[node] = struct{}{}
	}
	return nodes
}
