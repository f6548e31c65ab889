package collection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/loom/collection"
)

func ints(vs ...int) *collection.Collection[int] {
	return collection.New(vs...)
}

func TestBasics(t *testing.T) {
	t.Parallel()

	c := ints(1, 2, 3)
	assert.Equal(t, 3, c.Count())
	assert.False(t, c.IsEmpty())
	assert.Equal(t, 1, c.First())
	assert.Equal(t, 3, c.Last())
	assert.Equal(t, 2, c.Get(1))
	assert.Zero(t, c.Get(9))
}

func TestNonMutatingOpsLeaveSourceIntact(t *testing.T) {
	t.Parallel()

	c := ints(1, 2, 3, 4)
	doubled := c.Map(func(v int) int { return v * 2 })
	evens := c.Filter(func(v int) bool { return v%2 == 0 })
	taken := c.Take(2)
	sorted := ints(3, 1, 2).SortBy(func(a, b int) bool { return a < b })

	assert.Equal(t, []int{2, 4, 6, 8}, doubled.All())
	assert.Equal(t, []int{2, 4}, evens.All())
	assert.Equal(t, []int{1, 2}, taken.All())
	assert.Equal(t, []int{1, 2, 3}, sorted.All())
	assert.Equal(t, []int{1, 2, 3, 4}, c.All())
}

func TestTakeNegative(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{3, 4}, ints(1, 2, 3, 4).Take(-2).All())
}

func TestChunkAndForPage(t *testing.T) {
	t.Parallel()

	chunks := ints(1, 2, 3, 4, 5).Chunk(2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{1, 2}, chunks[0].All())
	assert.Equal(t, []int{5}, chunks[2].All())

	assert.Equal(t, []int{3, 4}, ints(1, 2, 3, 4, 5).ForPage(2, 2).All())
	assert.True(t, ints(1).ForPage(5, 2).IsEmpty())
}

func TestGroupByAndUnique(t *testing.T) {
	t.Parallel()

	groups := ints(1, 2, 3, 4).GroupBy(func(v int) any { return v % 2 })
	assert.Equal(t, []int{2, 4}, groups[0].All())
	assert.Equal(t, []int{1, 3}, groups[1].All())

	assert.Equal(t, []int{1, 2, 3}, ints(1, 2, 1, 3, 2).Unique(func(v int) any { return v }).All())
}

func TestMutatingOps(t *testing.T) {
	t.Parallel()

	c := ints(1, 2, 3)
	c.Push(4).Prepend(0)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, c.All())

	assert.Equal(t, 4, c.Pop())
	assert.Equal(t, 0, c.Shift())
	assert.Equal(t, []int{1, 2, 3}, c.All())

	c.Put(1, 9)
	assert.Equal(t, []int{1, 9, 3}, c.All())

	assert.Equal(t, 9, c.Pull(1))
	assert.Equal(t, []int{1, 3}, c.All())

	c.Merge(5, 6).Reverse()
	assert.Equal(t, []int{6, 5, 3, 1}, c.All())

	c.Reject(func(v int) bool { return v > 4 })
	assert.Equal(t, []int{3, 1}, c.All())

	c.Transform(func(v int) int { return v + 1 })
	assert.Equal(t, []int{4, 2}, c.All())

	c.Forget(0)
	assert.Equal(t, []int{2}, c.All())
}

func TestAggregates(t *testing.T) {
	t.Parallel()

	c := ints(1, 2, 3, 4)
	id := func(v int) float64 { return float64(v) }
	assert.Equal(t, 10.0, collection.Sum(c, id))
	assert.Equal(t, 2.5, collection.Avg(c, id))
	assert.Equal(t, 4.0, collection.Max(c, id))
	assert.Equal(t, 1.0, collection.Min(c, id))
	assert.Equal(t, []float64{1, 2, 3, 4}, collection.Pluck(c, id))
}

func TestZip(t *testing.T) {
	t.Parallel()

	zipped := ints(1, 2, 3).Zip(ints(4, 5))
	require.Equal(t, 2, zipped.Count())
	assert.Equal(t, [2]int{1, 4}, zipped.First())
}

func TestContainsAndEach(t *testing.T) {
	t.Parallel()

	c := ints(1, 2, 3)
	assert.True(t, c.Contains(func(v int) bool { return v == 2 }))
	assert.False(t, c.Contains(func(v int) bool { return v == 9 }))

	total := 0
	c.Each(func(v int) { total += v })
	assert.Equal(t, 6, total)
}

func TestWhereFiltersByKey(t *testing.T) {
	t.Parallel()

	c := collection.New(
		map[string]any{"name": "Joe", "age": int64(30)},
		map[string]any{"name": "Jane", "age": 30},
		map[string]any{"name": "Bob", "age": int64(40)},
	)
	// Driver integer types normalize before comparison.
	adults := c.Where("age", 30)
	require.Equal(t, 2, adults.Count())
	assert.Equal(t, "Joe", adults.First()["name"])
	assert.Equal(t, 3, c.Count())

	assert.True(t, c.Where("age", 99).IsEmpty())
}

func TestDiff(t *testing.T) {
	t.Parallel()

	c := ints(1, 2, 3, 4)
	diff := c.Diff(ints(2, 4, 5))
	assert.Equal(t, []int{1, 3}, diff.All())
	assert.Equal(t, []int{1, 2, 3, 4}, c.All())
}

func TestImplode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1, 2, 3", ints(1, 2, 3).Implode(", "))

	users := collection.New(
		map[string]any{"name": "Joe"},
		map[string]any{"name": "Jane"},
	)
	assert.Equal(t, "Joe-Jane", users.Implode("-", "name"))
}

func TestFlattenRejoinsChunks(t *testing.T) {
	t.Parallel()

	chunks := ints(1, 2, 3, 4, 5).Chunk(2)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, collection.Flatten(chunks).All())
	assert.True(t, collection.Flatten[int](nil).IsEmpty())
}

type row struct{ ID int }

func (r row) Serialize() map[string]any { return map[string]any{"id": r.ID} }

func TestSerializeAndToJSON(t *testing.T) {
	t.Parallel()

	c := collection.New(row{1}, row{2})
	out := c.Serialize()
	require.Len(t, out, 2)
	assert.Equal(t, map[string]any{"id": 1}, out[0])

	data, err := c.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1},{"id":2}]`, string(data))
}
