package reactive_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoursync/internal/reactive"
)

func TestValueReplaysLatestOnSubscribe(t *testing.T) {
	v := reactive.NewValue(1, reactive.Comparable[int])
	v.Set(2)

	var got []int
	stop := v.Subscribe(func(n int) { got = append(got, n) })
	v.Set(3)
	stop()
	v.Set(4)

	assert.Equal(t, []int{2, 3}, got)
	assert.Equal(t, 4, v.Get())
}

func TestValueSuppressesEqualSets(t *testing.T) {
	v := reactive.NewValue("a", reactive.Comparable[string])
	calls := 0
	v.Subscribe(func(string) { calls++ })

	assert.False(t, v.Set("a"))
	assert.True(t, v.Set("b"))
	assert.Equal(t, 2, calls)
}

func TestNilEqualAlwaysNotifies(t *testing.T) {
	v := reactive.NewValue(0, nil)
	calls := 0
	v.Subscribe(func(int) { calls++ })
	v.Set(0)
	v.Set(0)
	assert.Equal(t, 3, calls)
}

func TestMapComputesOncePerChange(t *testing.T) {
	src := reactive.NewValue(2, reactive.Comparable[int])
	computed := 0
	doubled := reactive.Map[int, int](src, func(n int) int {
		computed++
		return n * 2
	}, reactive.Comparable[int])
	defer doubled.Close()

	var a, b []int
	doubled.Subscribe(func(n int) { a = append(a, n) })
	doubled.Subscribe(func(n int) { b = append(b, n) })
	src.Set(5)

	assert.Equal(t, []int{4, 10}, a)
	assert.Equal(t, []int{4, 10}, b)
	assert.Equal(t, 2, computed)
}

func TestMapCloseDetaches(t *testing.T) {
	src := reactive.NewValue(1, reactive.Comparable[int])
	m := reactive.Map[int, int](src, func(n int) int { return n + 1 }, nil)
	require.Equal(t, 1, src.Subscribers())
	m.Close()
	m.Close()
	assert.Equal(t, 0, src.Subscribers())
	src.Set(10)
	assert.Equal(t, 2, m.Get())
}

func TestCombine(t *testing.T) {
	a := reactive.NewValue(1, reactive.Comparable[int])
	b := reactive.NewValue("x", reactive.Comparable[string])
	computed := 0
	c := reactive.Combine[int, string, string](a, b, func(n int, s string) string {
		computed++
		return s + string(rune('0'+n))
	}, reactive.Comparable[string])
	defer c.Close()

	assert.Equal(t, "x1", c.Get())
	assert.Equal(t, 1, computed)
	a.Set(2)
	b.Set("y")
	assert.Equal(t, "y2", c.Get())
	assert.Equal(t, 3, computed)
}

func TestSameElements(t *testing.T) {
	x, y := &struct{ n int }{1}, &struct{ n int }{1}
	assert.True(t, reactive.SameElements([]*struct{ n int }{x, y}, []*struct{ n int }{x, y}))
	assert.False(t, reactive.SameElements([]*struct{ n int }{x, y}, []*struct{ n int }{y, x}))
	assert.False(t, reactive.SameElements([]*struct{ n int }{x}, []*struct{ n int }{x, y}))
}
