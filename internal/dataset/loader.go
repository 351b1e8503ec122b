package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/born-ml/adain/internal/tensor"
)

// Batch is a stacked set of pairs: Style and Content are (N, S, S, 3) RGB
// tensors in [0, 1].
type Batch struct {
	Index   int
	Style   *tensor.RawTensor
	Content *tensor.RawTensor
}

// Size returns the number of pairs in the batch.
func (b Batch) Size() int {
	return b.Content.Shape()[0]
}

// Result carries either a batch or the error that ended the epoch.
type Result struct {
	Batch Batch
	Err   error
}

// LoaderConfig holds configuration for a Loader.
type LoaderConfig struct {
	BatchSize int   // Pairs per batch; the last batch may be smaller
	Shuffle   int   // Shuffle buffer size (default: BatchSize)
	Prefetch  int   // Batches prepared ahead of the consumer (default: 2)
	Seed      int64 // Base seed; each epoch derives its own stream
}

// Loader batches a Source on a background goroutine.
type Loader struct {
	src Source
	cfg LoaderConfig
}

// NewLoader validates cfg and creates a loader.
func NewLoader(src Source, cfg LoaderConfig) (*Loader, error) {
	if src == nil {
		return nil, fmt.Errorf("dataset: source cannot be nil")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be positive, got %d", cfg.BatchSize)
	}
	if src.Len() == 0 {
		return nil, fmt.Errorf("dataset: source is empty")
	}
	if cfg.Shuffle <= 0 {
		cfg.Shuffle = cfg.BatchSize
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 2
	}
	return &Loader{src: src, cfg: cfg}, nil
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	return (l.src.Len() + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Epoch starts producing the batches of one epoch. The channel is closed
// after the last batch, after the first error, or when ctx is done. At
// most Prefetch batches wait in the channel.
func (l *Loader) Epoch(ctx context.Context, epoch int) <-chan Result {
	out := make(chan Result, l.cfg.Prefetch)
	go func() {
		defer close(out)

		//nolint:gosec // shuffling and cropping do not need crypto randomness
		rng := rand.New(rand.NewSource(l.cfg.Seed + int64(epoch)*7919))
		if r, ok := l.src.(reshuffler); ok {
			r.Reshuffle(rng)
		}
		order := shuffleOrder(l.src.Len(), l.cfg.Shuffle, rng)

		for b := 0; b*l.cfg.BatchSize < len(order); b++ {
			idx := order[b*l.cfg.BatchSize : min((b+1)*l.cfg.BatchSize, len(order))]
			seeds := make([]int64, len(idx))
			for i := range seeds {
				seeds[i] = rng.Int63()
			}

			batch, err := l.load(idx, seeds)
			res := Result{Batch: batch, Err: err}
			res.Batch.Index = b
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// load decodes the pairs of one batch concurrently and stacks them.
func (l *Loader) load(idx []int, seeds []int64) (Batch, error) {
	styles := make([]*tensor.RawTensor, len(idx))
	contents := make([]*tensor.RawTensor, len(idx))
	errs := make([]error, len(idx))

	var wg sync.WaitGroup
	for i, pair := range idx {
		wg.Add(1)
		go func(i, pair int) {
			defer wg.Done()
			//nolint:gosec // per-item crop offsets
			rng := rand.New(rand.NewSource(seeds[i]))
			styles[i], contents[i], errs[i] = l.src.Load(pair, rng)
		}(i, pair)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Batch{}, err
		}
	}
	style, err := Stack(styles)
	if err != nil {
		return Batch{}, err
	}
	content, err := Stack(contents)
	if err != nil {
		return Batch{}, err
	}
	return Batch{Style: style, Content: content}, nil
}

// Stack concatenates (1, H, W, C) tensors of equal shape along the batch
// axis.
func Stack(items []*tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("dataset: nothing to stack")
	}
	first := items[0].Shape()
	if len(first) != 4 || first[0] != 1 {
		return nil, fmt.Errorf("dataset: cannot stack %v", first)
	}
	shape := first.Clone()
	shape[0] = len(items)
	out := tensor.Zeros(shape)
	per := items[0].NumElements()
	for i, it := range items {
		if !it.Shape().Equal(first) {
			return nil, fmt.Errorf("dataset: item %d has shape %v, want %v", i, it.Shape(), first)
		}
		copy(out.Data()[i*per:], it.Data())
	}
	return out, nil
}

// shuffleOrder emits 0..n-1 through a fixed-size shuffle buffer: the
// buffer is filled in order, and each output is a uniformly chosen buffer
// slot that is then refilled with the next index.
func shuffleOrder(n, buffer int, rng *rand.Rand) []int {
	out := make([]int, 0, n)
	if buffer <= 1 {
		for i := 0; i < n; i++ {
			out = append(out, i)
		}
		return out
	}

	buf := make([]int, 0, buffer)
	next := 0
	for next < n && len(buf) < buffer {
		buf = append(buf, next)
		next++
	}
	for len(buf) > 0 {
		j := rng.Intn(len(buf))
		out = append(out, buf[j])
		if next < n {
			buf[j] = next
			next++
		} else {
			buf[j] = buf[len(buf)-1]
			buf = buf[:len(buf)-1]
		}
	}
	return out
}
