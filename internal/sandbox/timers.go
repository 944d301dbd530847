package sandbox

import (
	"container/heap"
	"strconv"

	"github.com/dop251/goja"
)

// timer is one pending setTimeout or setInterval callback.
type timer struct {
	id       int64
	due      int64 // virtual milliseconds
	seq      int64
	interval int64 // zero for one-shot timers
	runs     int

	fn   goja.Callable
	code string
	args []goja.Value
}

// timerHeap orders timers by due time, then by scheduling order.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timer)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	t := old[len(old)-1]
	*h = old[:len(old)-1]
	return t
}

// timerQueue runs timers on a virtual clock. Nothing ever sleeps: draining
// jumps the clock straight to the next due timer.
type timerQueue struct {
	now    int64
	seq    int64
	nextID int64
	queue  timerHeap
	active map[int64]*timer
}

func newTimerQueue() *timerQueue {
	return &timerQueue{active: make(map[int64]*timer)}
}

// install defines setTimeout, setInterval, clearTimeout and clearInterval.
func (q *timerQueue) install(r *Runtime) error {
	vm := r.vm
	schedule := func(repeat bool) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			t := &timer{}
			if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
				t.fn = fn
			} else {
				t.code = call.Argument(0).String()
			}
			delay := call.Argument(1).ToInteger()
			if delay < 0 {
				delay = 0
			}
			if repeat {
				t.interval = delay
				if t.interval == 0 {
					t.interval = 1
				}
			}
			if len(call.Arguments) > 2 {
				t.args = append([]goja.Value{}, call.Arguments[2:]...)
			}
			return vm.ToValue(q.add(t, delay))
		}
	}
	clear := func(call goja.FunctionCall) goja.Value {
		q.cancel(call.Argument(0).ToInteger())
		return goja.Undefined()
	}

	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":    schedule(false),
		"setInterval":   schedule(true),
		"clearTimeout":  clear,
		"clearInterval": clear,
	} {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (q *timerQueue) add(t *timer, delay int64) int64 {
	q.nextID++
	t.id = q.nextID
	q.schedule(t, delay)
	q.active[t.id] = t
	return t.id
}

func (q *timerQueue) schedule(t *timer, delay int64) {
	q.seq++
	t.seq = q.seq
	t.due = q.now + delay
	heap.Push(&q.queue, t)
}

func (q *timerQueue) cancel(id int64) {
	delete(q.active, id)
}

// pending reports the number of timers still scheduled.
func (q *timerQueue) pending() int {
	return len(q.active)
}

// drain runs due timers in order until the queue is empty or budget
// callbacks have run. An interval stops after maxRuns runs.
func (q *timerQueue) drain(r *Runtime, budget, maxRuns int) int {
	ran := 0
	for q.queue.Len() > 0 && (budget <= 0 || ran < budget) {
		t := heap.Pop(&q.queue).(*timer)
		if q.active[t.id] != t {
			continue
		}
		q.now = t.due
		t.runs++

		if t.interval > 0 && (maxRuns <= 0 || t.runs < maxRuns) {
			q.schedule(t, t.interval)
		} else {
			delete(q.active, t.id)
		}

		name := "timer#" + strconv.FormatInt(t.id, 10)
		if t.fn != nil {
			r.invoke(name, t.fn, goja.Undefined(), t.args...)
		} else {
			r.runNested(name, t.code)
		}
		ran++
	}
	return ran
}
