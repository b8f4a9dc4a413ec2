// Package parallel contains the bounded worker pool used to prepare data
// outside the model runtime.
package parallel

import "sync"

// ForEach runs body for every i in [0, length) on at most limit goroutines.
// It waits for all started bodies and returns the error of the lowest index
// that failed. Once a body fails no new indices are started.
func ForEach(length, limit int, body func(i int) error) error {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		return nil
	}

	var (
		wg     sync.WaitGroup
		mut    sync.Mutex
		failed = -1
		first  error
	)
	sem := make(chan struct{}, limit)

	for i := 0; i < length; i++ {
		mut.Lock()
		stop := failed >= 0
		mut.Unlock()
		if stop {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := body(i); err != nil {
				mut.Lock()
				if failed < 0 || i < failed {
					failed, first = i, err
				}
				mut.Unlock()
			}
		}(i)
	}

	wg.Wait()
	return first
}
