package poll

import (
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/moqsien/processes/logger"

	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/utils/queue"
)

type task struct {
	Go  iface.TaskFunc
	Arg iface.TaskArg
}

var taskPool = sync.Pool{
	New: func() interface{} {
		return &task{}
	},
}

func getTask() *task {
	return taskPool.Get().(*task)
}

func putTask(t *task) {
	t.Go, t.Arg = nil, nil
	taskPool.Put(t)
}

// taskRunner queues deferred work for both backends. Tasks are drained
// after a poll cycle, outside the registry lock, and executed on the
// ants goroutine pool. Prior tasks are always drained fully; ordinary
// tasks are bounded per cycle so a flood cannot starve polling.
type taskRunner struct {
	tasks    queue.TaskQueue
	prior    queue.TaskQueue
	pool     *ants.Pool
	toWakeup int32
}

func newTaskRunner(size int) (r *taskRunner, err error) {
	r = &taskRunner{
		tasks: queue.NewQueue(),
		prior: queue.NewQueue(),
	}
	if r.pool, err = ants.NewPool(size); err != nil {
		return nil, err
	}
	return
}

func (that *taskRunner) add(prior bool, f iface.TaskFunc, arg iface.TaskArg, wake func()) {
	t := getTask()
	t.Go, t.Arg = f, arg
	if prior {
		that.prior.Enqueue(t)
	} else {
		that.tasks.Enqueue(t)
	}
	if atomic.CompareAndSwapInt32(&that.toWakeup, 0, 1) {
		wake()
	}
}

func (that *taskRunner) run(wake func()) {
	t := that.prior.Dequeue()
	for ; t != nil; t = that.prior.Dequeue() {
		that.submit(t.(*task))
	}
	for i := 0; i < iface.MaxTasks; i++ {
		if t = that.tasks.Dequeue(); t == nil {
			break
		}
		that.submit(t.(*task))
	}
	atomic.StoreInt32(&that.toWakeup, 0)
	if !that.tasks.IsEmpty() || !that.prior.IsEmpty() {
		if atomic.CompareAndSwapInt32(&that.toWakeup, 0, 1) {
			wake()
		}
	}
}

func (that *taskRunner) submit(t *task) {
	err := that.pool.Submit(func() {
		if err := t.Go(t.Arg); err != nil {
			logger.Warningf("error occurs in user-defined task, %v", err)
		}
		putTask(t)
	})
	if err != nil {
		logger.Warningf("submit task: %v", err)
		putTask(t)
	}
}

func (that *taskRunner) release() {
	if that.pool != nil {
		that.pool.Release()
	}
}
