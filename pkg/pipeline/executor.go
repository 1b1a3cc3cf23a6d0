package pipeline

import (
	"github.com/gammazero/workerpool"
)

// Executor runs transform work off the event loop. Submit must not block.
type Executor interface {
	Submit(task func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task func())

// Submit calls f.
func (f ExecutorFunc) Submit(task func()) { f(task) }

// Inline runs every task synchronously inside Submit.
var Inline Executor = ExecutorFunc(func(task func()) { task() })

// PoolExecutor runs tasks on a fixed set of goroutines. Tasks may complete in
// any order; Transform restores submission order.
type PoolExecutor struct {
	pool *workerpool.WorkerPool
}

// NewPoolExecutor creates an executor with the given number of workers.
func NewPoolExecutor(workers int) *PoolExecutor {
	if workers <= 0 {
		workers = 1
	}
	return &PoolExecutor{pool: workerpool.New(workers)}
}

// Submit queues task without blocking.
func (e *PoolExecutor) Submit(task func()) {
	e.pool.Submit(task)
}

// Waiting returns the number of queued tasks not yet started.
func (e *PoolExecutor) Waiting() int {
	return e.pool.WaitingQueueSize()
}

// Stop waits for queued tasks to finish and releases the workers.
func (e *PoolExecutor) Stop() {
	e.pool.StopWait()
}
