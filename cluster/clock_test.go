package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorClockTick(t *testing.T) {
	v := NewVectorClock()
	v.Tick("a")
	v.Tick("a")
	v.Tick("b")
	assert.Equal(t, uint64(2), v["a"])
	assert.Equal(t, uint64(1), v["b"])
}

func TestVectorClockMerge(t *testing.T) {
	a := VectorClock{"n1": 3, "n2": 1}
	b := VectorClock{"n1": 2, "n2": 5, "n3": 1}
	a.Merge(b)
	assert.Equal(t, VectorClock{"n1": 3, "n2": 5, "n3": 1}, a)
}

func TestVectorClockCloneIndependent(t *testing.T) {
	a := VectorClock{"n1": 1}
	b := a.Clone()
	b.Tick("n1")
	assert.Equal(t, uint64(1), a["n1"])
	assert.Equal(t, uint64(2), b["n1"])
}

func TestVectorClockCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b VectorClock
		want Causality
	}{
		{"both empty", VectorClock{}, VectorClock{}, Equal},
		{"identical", VectorClock{"n1": 2, "n2": 1}, VectorClock{"n1": 2, "n2": 1}, Equal},
		{"strictly before", VectorClock{"n1": 1}, VectorClock{"n1": 2}, Before},
		{"before with extra node", VectorClock{"n1": 1}, VectorClock{"n1": 1, "n2": 1}, Before},
		{"strictly after", VectorClock{"n1": 3, "n2": 1}, VectorClock{"n1": 2, "n2": 1}, After},
		{"concurrent", VectorClock{"n1": 2, "n2": 1}, VectorClock{"n1": 1, "n2": 2}, Concurrent},
		{"concurrent disjoint", VectorClock{"n1": 1}, VectorClock{"n2": 1}, Concurrent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestVectorClockCompareAntisymmetric(t *testing.T) {
	a := VectorClock{"n1": 1}
	b := VectorClock{"n1": 2, "n2": 1}
	assert.Equal(t, Before, a.Compare(b))
	assert.Equal(t, After, b.Compare(a))
}
