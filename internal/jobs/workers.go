package jobs

import (
	"log"
	"sync"
)

// Pool runs fire-and-forget background tasks on a fixed set of workers so
// webhook handlers can acknowledge immediately and leave the work behind.
type Pool struct {
	tasks   chan func()
	workers int
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		tasks:   make(chan func(), 256),
		workers: workers,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	log.Printf("Starting worker pool with %d workers...", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Submit queues a task for execution. It never blocks the caller: when the
// queue is full the task runs on its own goroutine instead.
func (p *Pool) Submit(task func()) {
	select {
	case p.tasks <- task:
	default:
		log.Println("⚠️ Worker queue full, running task unpooled")
		go task()
	}
}

// Stop drains the queue and waits for the workers to finish.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
	log.Println("Worker pool stopped")
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("❌ Worker %d recovered from panic: %v", id, r)
				}
			}()
			task()
		}()
	}
}
