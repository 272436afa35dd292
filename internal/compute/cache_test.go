package compute

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

func TestCache_ComputesOncePerKey(t *testing.T) {
	var c Cache[int, []int]
	var calls int

	sites := func() ([]int, error) {
		calls++
		return []int{0, 1, 2, 3}, nil
	}

	a, err := c.GetOrCompute(4, sites)
	require.NoError(t, err)
	b, err := c.GetOrCompute(4, sites)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	var c Cache[string, int]
	boom := errors.New("boom")

	_, err := c.GetOrCompute("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.GetOrCompute("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCache_ConcurrentCallersShareComputation(t *testing.T) {
	var c Cache[int, int]
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 20)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute(1, func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestCache_Reset(t *testing.T) {
	var c Cache[int, int]
	_, err := c.GetOrCompute(1, func() (int, error) { return 1, nil })
	require.NoError(t, err)

	c.Reset()
	assert.Equal(t, 0, c.Len())

	v, err := c.GetOrCompute(1, func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMemoize_EqualParamsComputeOnce(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	comp := Func[int](func(ctx context.Context, run, sys params.Params) (int, error) {
		calls.Add(1)
		return int(run["N"].(params.Int)) * 2, nil
	})
	cache := &Cache[string, int]{}
	memo := Memoize[int](comp, cache)
	sys := params.Params{"J": params.Float(1)}

	a, err := memo.Compute(ctx, params.Params{"N": params.Int(4)}, sys)
	require.NoError(t, err)
	b, err := memo.Compute(ctx, params.Params{"N": params.Int(4)}, sys)
	require.NoError(t, err)
	c, err := memo.Compute(ctx, params.Params{"N": params.Int(8)}, sys)
	require.NoError(t, err)

	assert.Equal(t, 8, a)
	assert.Equal(t, 8, b)
	assert.Equal(t, 16, c)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestMemoize_SystemParamsArePartOfTheKey(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	comp := Func[float64](func(ctx context.Context, run, sys params.Params) (float64, error) {
		calls.Add(1)
		return float64(sys["J"].(params.Float)), nil
	})
	memo := Memoize[float64](comp, &Cache[string, float64]{})
	run := params.Params{"N": params.Int(4)}

	a, err := memo.Compute(ctx, run, params.Params{"J": params.Float(1)})
	require.NoError(t, err)
	b, err := memo.Compute(ctx, run, params.Params{"J": params.Float(2)})
	require.NoError(t, err)

	assert.Equal(t, 1.0, a)
	assert.Equal(t, 2.0, b)
	assert.Equal(t, int32(2), calls.Load())
}
