package chunk

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestDoVisitsEveryItemInOrder(t *testing.T) {
	for _, length := range []int{1, 2, 7, 99, 100, 101, 250} {
		for _, n := range []int{1, 3, 50, 100, 2000} {
			t.Run(fmt.Sprintf("len=%d/n=%d", length, n), func(t *testing.T) {
				items := seq(length)
				var visited []int
				var sizes []int

				sum := func(_ context.Context, c []int, _ Position) (int, error) {
					visited = append(visited, c...)
					sizes = append(sizes, len(c))
					return len(c), nil
				}

				batches := 0
				for b, err := range Do(context.Background(), items, n, sum) {
					require.NoError(t, err)
					assert.Equal(t, batches, b.Position.Ordinal())
					assert.Equal(t, batches*n, b.Position.Index)
					assert.Equal(t, sizes[batches], b.Result)
					batches++
				}

				assert.Equal(t, items, visited)
				assert.Equal(t, Count(length, n), batches)

				wantLast := length % n
				if wantLast == 0 {
					wantLast = n
				}
				assert.Equal(t, wantLast, sizes[len(sizes)-1])
			})
		}
	}
}

func TestDoPosition(t *testing.T) {
	var positions []Position
	record := func(_ context.Context, _ []string, pos Position) (struct{}, error) {
		positions = append(positions, pos)
		return struct{}{}, nil
	}

	items := make([]string, 250)
	for _, err := range Do(context.Background(), items, 100, record) {
		require.NoError(t, err)
	}

	require.Len(t, positions, 3)
	for i, pos := range positions {
		assert.Equal(t, 100, pos.Size)
		assert.Equal(t, 2, pos.LastIndex)
		assert.Equal(t, i*100, pos.Index)
		assert.Equal(t, 3, pos.Total())
	}
	assert.Equal(t, "1/3", positions[0].String())
	assert.Equal(t, "3/3", positions[2].String())
	assert.Equal(t, 33, positions[0].Percent())
	assert.Equal(t, 100, positions[2].Percent())
}

func TestDoEmpty(t *testing.T) {
	called := false
	f := func(context.Context, []int, Position) (int, error) {
		called = true
		return 0, nil
	}
	for range Do(context.Background(), nil, 10, f) {
		t.Fatal("expected no batches for empty input")
	}
	assert.False(t, called)
}

func TestDoFailFast(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	f := func(_ context.Context, _ []int, pos Position) (int, error) {
		calls++
		if pos.Ordinal() == 1 {
			return 0, boom
		}
		return pos.Ordinal(), nil
	}

	var got []int
	var gotErr error
	for b, err := range Do(context.Background(), seq(10), 3, f) {
		if err != nil {
			gotErr = err
			assert.Equal(t, 3, b.Position.Index)
			continue
		}
		got = append(got, b.Result)
	}

	assert.ErrorIs(t, gotErr, boom)
	assert.Equal(t, []int{0}, got)
	assert.Equal(t, 2, calls, "no chunk may start after a failure")
}

func TestDoStopsWhenConsumerBreaks(t *testing.T) {
	var calls int
	f := func(context.Context, []int, Position) (int, error) {
		calls++
		return 0, nil
	}
	for range Do(context.Background(), seq(10), 2, f) {
		break
	}
	assert.Equal(t, 1, calls)
}

func TestDoNotRestartable(t *testing.T) {
	f := func(_ context.Context, c []int, _ Position) (int, error) { return len(c), nil }
	s := Do(context.Background(), seq(4), 2, f)

	n := 0
	for _, err := range s {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)

	var second []error
	for _, err := range s {
		second = append(second, err)
	}
	require.Len(t, second, 1)
	assert.ErrorIs(t, second[0], ErrConsumed)
}

func TestDoInvalidSize(t *testing.T) {
	f := func(context.Context, []int, Position) (int, error) { return 0, nil }
	for _, err := range Do(context.Background(), seq(3), 0, f) {
		assert.Error(t, err)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	f := func(context.Context, []int, Position) (int, error) {
		calls++
		cancel()
		return 0, nil
	}

	var errs []error
	for _, err := range Do(ctx, seq(6), 2, f) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	assert.Equal(t, 1, calls)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestCount(t *testing.T) {
	tests := []struct {
		length, n, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{250, 100, 3},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := Count(tt.length, tt.n); got != tt.want {
			t.Errorf("Count(%d, %d) = %d, want %d", tt.length, tt.n, got, tt.want)
		}
	}
}
