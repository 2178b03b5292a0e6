package docrag

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Job func(ctx context.Context) error

// WorkerPool runs jobs off the request path on a fixed number of
// goroutines. Submit never blocks: a full queue rejects the job.
type WorkerPool struct {
	jobs chan Job
	wg   sync.WaitGroup
	log  *zap.Logger
	ctx  context.Context

	closed bool
	sync.RWMutex
}

func NewWorkerPool(ctx context.Context, workers int, size int) *WorkerPool {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	if size <= 0 {
		size = DefaultQueueSize
	}

	p := &WorkerPool{
		jobs: make(chan Job, size),
		log: zap.L().With(
			zap.String("component", "worker_pool"),
		),
		ctx: context.WithoutCancel(ctx),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.consume(i)
	}

	return p
}

func (p *WorkerPool) consume(id int) {
	defer p.wg.Done()

	log := p.log.With(
		zap.Int("worker", id),
	)

	for job := range p.jobs {
		if err := p.run(job); err != nil {
			log.Error(err.Error())
		}
	}
}

func (p *WorkerPool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()

	return job(p.ctx)
}

func (p *WorkerPool) Submit(job Job) error {
	p.RLock()
	defer p.RUnlock()

	if p.closed {
		return ErrQueueFull
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (p *WorkerPool) Close() {
	p.Lock()
	if p.closed {
		p.Unlock()
		return
	}

	p.closed = true
	close(p.jobs)
	p.Unlock()

	p.wg.Wait()
}
