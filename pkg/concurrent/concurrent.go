package concurrent

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/protostore/pkg/sequence"
)

// ForEach runs the action function for each element of the iterator in a separate
// goroutine. It waits for all goroutines to finish and returns the first error
// encountered, if any.
func ForEach[T any](i *sequence.Iterator[T], action func(T) error) error {
	var g errgroup.Group
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		g.Go(func() error {
			return action(value)
		})
	}

	return g.Wait()
}

// CollectErrors runs the action function for each item in a separate goroutine
// and waits for all of them. Unlike ForEach it does not stop at the first
// failure: every item is attempted, and every failure is returned keyed by the
// item that produced it. The result is nil when all actions succeed.
func CollectErrors[T comparable](items []T, action func(T) error) map[T]error {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed map[T]error
	)

	for _, item := range items {
		g.Go(func() error {
			if err := action(item); err != nil {
				mu.Lock()
				if failed == nil {
					failed = make(map[T]error)
				}
				failed[item] = err
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return failed
}
