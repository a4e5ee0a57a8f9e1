package rworker

import "sync"

// Job runs fn in its own goroutine once a slot in rate is free, so at most
// cap(rate) jobs run at a time. Errors that do not fit into errCh are dropped.
func Job(wg *sync.WaitGroup, fn func() error, rate chan struct{}, errCh chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		rate <- struct{}{}
		defer func() { <-rate }()
		if err := fn(); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
}
