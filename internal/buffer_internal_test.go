package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type segment struct{ start, end int }

// collect runs ForEachSegment and gathers the visited ranges.
func collect(d BufferDescriptor, tryContiguous bool) []segment {
	var segs []segment
	d.ForEachSegment(tryContiguous, func(start, end int) {
		segs = append(segs, segment{start, end})
	})
	return segs
}

// TestDescriptorValidate tests that descriptor invariant violations panic
// and that well-formed descriptors pass.
func TestDescriptorValidate(t *testing.T) {
	cases := map[string]struct {
		d  BufferDescriptor
		ok bool
	}{
		"Simple":            {SimpleDesc(8, false), true},
		"Format":            {FormatDesc(8, true, 2, "H"), true},
		"Empty":             {SimpleDesc(0, false), true},
		"TwoDim":            {BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}, true},
		"NegativeStride":    {BufferDescriptor{3, false, 1, "B", []Dim{{3, -1, 2}}}, true},
		"ZeroItemsize":      {BufferDescriptor{0, false, 0, "B", []Dim{{0, 1, 0}}}, false},
		"NoDims":            {BufferDescriptor{4, false, 4, "i", nil}, false},
		"ZeroStride":        {BufferDescriptor{3, false, 1, "B", []Dim{{3, 0, 0}}}, false},
		"NegativeSuboffset": {BufferDescriptor{3, false, 1, "B", []Dim{{3, 1, -1}}}, false},
		"LengthMismatch":    {BufferDescriptor{5, false, 2, "H", []Dim{{3, 2, 0}}}, false},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if c.ok {
				assert.NotPanics(t, func() { c.d.Validate() })
			} else {
				assert.Panics(t, func() { c.d.Validate() })
			}
		})
	}
}

// TestIsContiguous tests the row-major contiguity check.
func TestIsContiguous(t *testing.T) {
	cases := map[string]struct {
		d    BufferDescriptor
		want bool
	}{
		"Simple":      {SimpleDesc(8, false), true},
		"Empty":       {SimpleDesc(0, false), true},
		"RowMajor2D":  {BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}, true},
		"ColMajor2D":  {BufferDescriptor{24, false, 4, "i", []Dim{{2, 4, 0}, {3, 8, 0}}}, false},
		"Strided":     {BufferDescriptor{8, false, 1, "B", []Dim{{8, 2, 0}}}, false},
		"Reversed":    {BufferDescriptor{3, false, 1, "B", []Dim{{3, -1, 2}}}, false},
		"ZeroShape":   {BufferDescriptor{0, false, 4, "i", []Dim{{0, 4, 0}}}, true},
		"OneByOne":    {BufferDescriptor{4, false, 4, "i", []Dim{{1, 4, 0}}}, true},
		"WideOneItem": {BufferDescriptor{4, true, 4, "i", []Dim{{1, 1000, 0}}}, true},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.want, c.d.Validate().IsContiguous())
		})
	}
}

// TestFastPosition tests unchecked position computation with strides and
// suboffsets.
func TestFastPosition(t *testing.T) {
	d := BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}.Validate()
	assert.Equal(t, 0, d.FastPosition([]int{0, 0}))
	assert.Equal(t, 16, d.FastPosition([]int{1, 1}))
	assert.Equal(t, 20, d.FastPosition([]int{1, 2}))
	sub := BufferDescriptor{6, false, 2, "H", []Dim{{3, 2, 1}}}.Validate()
	assert.Equal(t, 1, sub.FastPosition([]int{0}))
	assert.Equal(t, 5, sub.FastPosition([]int{2}))
	assert.Panics(t, func() { d.FastPosition([]int{1}) })
}

// TestForEachSegment tests segment enumeration in both traversal modes.
func TestForEachSegment(t *testing.T) {
	t.Run("ContiguousFuses", func(t *testing.T) {
		d := BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}.Validate()
		require.Equal(t, []segment{{0, 12}, {12, 24}}, collect(d, true))
	})
	t.Run("PerElement", func(t *testing.T) {
		d := BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}.Validate()
		want := []segment{{0, 4}, {4, 8}, {8, 12}, {12, 16}, {16, 20}, {20, 24}}
		require.Equal(t, want, collect(d, false))
	})
	t.Run("SameOrder", func(t *testing.T) {
		// Fused and per-element traversal must cover the same bytes in the
		// same order.
		d := BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}.Validate()
		var fused, strided []byte
		d.ForEachSegment(true, func(start, end int) {
			for i := start; i < end; i++ {
				fused = append(fused, byte(i))
			}
		})
		d.ForEachSegment(false, func(start, end int) {
			for i := start; i < end; i++ {
				strided = append(strided, byte(i))
			}
		})
		require.Equal(t, fused, strided)
	})
	t.Run("StridedInnermost", func(t *testing.T) {
		// Every other byte of an 8-byte provider. The innermost dimension is
		// not dense, so the mode request is overridden.
		d := BufferDescriptor{4, false, 1, "B", []Dim{{4, 2, 0}}}.Validate()
		want := []segment{{0, 1}, {2, 3}, {4, 5}, {6, 7}}
		require.Equal(t, want, collect(d, true))
	})
	t.Run("Reversed", func(t *testing.T) {
		d := BufferDescriptor{3, false, 1, "B", []Dim{{3, -1, 2}}}.Validate()
		want := []segment{{2, 3}, {1, 2}, {0, 1}}
		require.Equal(t, want, collect(d, true))
	})
	t.Run("Suboffset", func(t *testing.T) {
		d := BufferDescriptor{4, false, 2, "H", []Dim{{2, 2, 1}}}.Validate()
		want := []segment{{1, 3}, {3, 5}}
		require.Equal(t, want, collect(d, true))
	})
	t.Run("ZeroShape", func(t *testing.T) {
		d := BufferDescriptor{0, false, 4, "i", []Dim{{0, 4, 0}}}.Validate()
		assert.Empty(t, collect(d, true))
		assert.Empty(t, collect(d, false))
	})
	t.Run("ZeroDim", func(t *testing.T) {
		d := BufferDescriptor{Len: 4, Itemsize: 4, Format: "i"}
		require.Equal(t, []segment{{0, 4}}, collect(d, true))
	})
}

// TestZipEq tests paired traversal over mismatched layouts and early
// termination.
func TestZipEq(t *testing.T) {
	t.Run("AsymmetricLayouts", func(t *testing.T) {
		// A dense view zipped with a reversed view of the same shape.
		a := SimpleDesc(3, false)
		b := BufferDescriptor{3, false, 1, "B", []Dim{{3, -1, 2}}}.Validate()
		var pairs [][4]int
		a.ZipEq(b, true, func(a0, a1, b0, b1 int) bool {
			pairs = append(pairs, [4]int{a0, a1, b0, b1})
			return false
		})
		want := [][4]int{{0, 1, 2, 3}, {1, 2, 1, 2}, {2, 3, 0, 1}}
		require.Equal(t, want, pairs)
	})
	t.Run("FusedRows", func(t *testing.T) {
		// Both sides contiguous: each innermost row is one visit.
		a := BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}.Validate()
		b := BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}.Validate()
		n := 0
		a.ZipEq(b, true, func(a0, a1, b0, b1 int) bool {
			n++
			return false
		})
		assert.Equal(t, 2, n)
	})
	t.Run("EarlyTermination", func(t *testing.T) {
		a := SimpleDesc(8, false)
		b := SimpleDesc(8, false)
		n := 0
		a.ZipEq(b, false, func(a0, a1, b0, b1 int) bool {
			n++
			return n == 3
		})
		assert.Equal(t, 3, n)
	})
	t.Run("EarlyTerminationAcrossRows", func(t *testing.T) {
		// The first visit of the second row stops a fused traversal.
		a := BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}.Validate()
		b := BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}.Validate()
		var last [4]int
		n := 0
		a.ZipEq(b, true, func(a0, a1, b0, b1 int) bool {
			n++
			last = [4]int{a0, a1, b0, b1}
			return n == 2
		})
		assert.Equal(t, 2, n)
		assert.Equal(t, [4]int{12, 24, 12, 24}, last)
	})
	t.Run("ZeroDim", func(t *testing.T) {
		a := BufferDescriptor{Len: 4, Itemsize: 4, Format: "i"}
		b := BufferDescriptor{Len: 4, Itemsize: 4, Format: "i"}
		n := 0
		a.ZipEq(b, true, func(a0, a1, b0, b1 int) bool {
			n++
			return false
		})
		assert.Equal(t, 1, n)
	})
	t.Run("ZeroShape", func(t *testing.T) {
		// Both traversal modes visit nothing for an empty logical shape.
		a := BufferDescriptor{0, false, 4, "i", []Dim{{0, 4, 0}}}.Validate()
		b := BufferDescriptor{0, false, 4, "i", []Dim{{0, 4, 0}}}.Validate()
		for _, tryContiguous := range []bool{true, false} {
			n := 0
			a.ZipEq(b, tryContiguous, func(a0, a1, b0, b1 int) bool {
				n++
				return false
			})
			assert.Equal(t, 0, n)
		}
	})
	t.Run("ShapeMismatch", func(t *testing.T) {
		a := SimpleDesc(3, false)
		b := SimpleDesc(4, false)
		assert.Panics(t, func() {
			a.ZipEq(b, true, func(a0, a1, b0, b1 int) bool { return false })
		})
		c := BufferDescriptor{24, false, 4, "i", []Dim{{2, 12, 0}, {3, 4, 0}}}.Validate()
		assert.Panics(t, func() {
			a.ZipEq(c, true, func(a0, a1, b0, b1 int) bool { return false })
		})
	})
}

// TestIsZeroInShape tests empty-shape detection.
func TestIsZeroInShape(t *testing.T) {
	assert.False(t, SimpleDesc(4, false).IsZeroInShape())
	d := BufferDescriptor{0, false, 1, "B", []Dim{{2, 1, 0}, {0, 1, 0}}}
	assert.True(t, d.IsZeroInShape())
}
