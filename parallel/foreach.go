package parallel

import "sync"

// ForEach runs body(i) for i in [0, length) on at most limit goroutines.
// It returns once every iteration has finished.
func ForEach(length, limit int, body func(i int)) {
	if length <= 0 {
		return
	}
	if limit <= 0 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(length)
	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			body(i)
		}(i)
	}
	wg.Wait()
}
