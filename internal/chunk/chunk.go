// Package chunk runs a batch operation over fixed-size windows of a slice.
//
// Chunks are processed strictly one after another, in source order. The
// operation for chunk i+1 is not started until the operation for chunk i has
// returned, which bounds the load placed on a remote service and keeps
// progress output ordered.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
)

// ErrConsumed is yielded when a sequence returned by Do is ranged over a
// second time. Sequences are forward-only and cannot be restarted.
var ErrConsumed = errors.New("chunk sequence already consumed")

// Position describes where a chunk sits within the source slice.
type Position struct {
	Size      int // chunk capacity
	Index     int // offset of the chunk's first item in the source slice
	LastIndex int // ordinal of the final chunk
}

// Ordinal returns the zero-based chunk number.
func (p Position) Ordinal() int {
	if p.Size <= 0 {
		return 0
	}
	return p.Index / p.Size
}

// Total returns the number of chunks in the run.
func (p Position) Total() int {
	return p.LastIndex + 1
}

// Percent returns how much of the run is done once this chunk completes.
func (p Position) Percent() int {
	if p.Total() <= 0 {
		return 100
	}
	return (p.Ordinal() + 1) * 100 / p.Total()
}

// String renders the one-based chunk position, e.g. "2/3".
func (p Position) String() string {
	return fmt.Sprintf("%d/%d", p.Ordinal()+1, p.Total())
}

// Count returns how many chunks of capacity n cover length items.
func Count(length, n int) int {
	if length <= 0 || n <= 0 {
		return 0
	}
	return (length + n - 1) / n
}

// Batch pairs the result of one chunk operation with the chunk's position.
type Batch[R any] struct {
	Result   R
	Position Position
}

// Func is the operation applied to each chunk.
type Func[T, R any] func(ctx context.Context, items []T, pos Position) (R, error)

// Do splits items into chunks of capacity n and lazily applies f to each.
//
// The returned sequence yields one Batch per chunk. The last chunk may hold
// fewer than n items. If f fails, the error is yielded once and iteration
// stops; remaining chunks are never started. Context cancellation is checked
// before each chunk.
func Do[T, R any](ctx context.Context, items []T, n int, f Func[T, R]) iter.Seq2[Batch[R], error] {
	var consumed atomic.Bool
	return func(yield func(Batch[R], error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(Batch[R]{}, ErrConsumed)
			return
		}
		if n < 1 {
			yield(Batch[R]{}, fmt.Errorf("chunk size must be positive, got %d", n))
			return
		}

		common := Position{Size: n, LastIndex: Count(len(items), n) - 1}
		for i := 0; i < len(items); i += n {
			pos := common
			pos.Index = i

			if err := ctx.Err(); err != nil {
				yield(Batch[R]{Position: pos}, err)
				return
			}

			end := min(i+n, len(items))
			result, err := f(ctx, items[i:end:end], pos)
			if err != nil {
				yield(Batch[R]{Position: pos}, err)
				return
			}
			if !yield(Batch[R]{Result: result, Position: pos}, nil) {
				return
			}
		}
	}
}
