// Package worker provides the bounded goroutine pool used for fire-and-forget
// side effects such as email delivery, so slow SMTP round trips never stall
// the dispatch path.
package worker

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	logger *logrus.Logger
	once   sync.Once
}

// NewPool starts size workers. Submitted tasks queue up to 4x the pool size
// before Submit starts dropping.
func NewPool(size int, logger *logrus.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		tasks:  make(chan func(), size*4),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.execute(task)
	}
}

// execute isolates panics so one bad task cannot kill a worker.
func (p *Pool) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", r).Error("Worker task panicked")
		}
	}()
	task()
}

// Submit enqueues a task. When the queue is full the task is dropped and
// logged rather than blocking the caller.
func (p *Pool) Submit(task func()) {
	select {
	case p.tasks <- task:
	default:
		p.logger.Warn("Worker queue full, dropping task")
	}
}

// Shutdown stops accepting tasks and waits for in-flight ones, or returns
// early when the context expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.tasks) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
