package icons

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Loop is the privileged single-threaded task queue. Everything that
// touches the icon cache runs as a task drained by exactly one goroutine,
// which enforces the cache's thread-affinity invariant structurally. A
// goroutine-identity assertion remains as a guard against direct calls.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	gid   atomic.Uint64

	stopOnce sync.Once
}

// NewLoop creates a loop. Run or Start must be called before posting.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
	}
}

// Run drains tasks until Stop is called. It blocks; the calling goroutine
// becomes the privileged one.
func (l *Loop) Run() {
	l.gid.Store(goid())
	for {
		select {
		case task := <-l.tasks:
			task()
		case <-l.quit:
			// Drain what was already queued before quitting.
			for {
				select {
				case task := <-l.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Start runs the loop on its own goroutine.
func (l *Loop) Start() {
	go l.Run()
}

// Stop terminates the loop after draining queued tasks.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}

// Post schedules a task onto the loop without waiting.
func (l *Loop) Post(task func()) {
	select {
	case l.tasks <- task:
	case <-l.quit:
	}
}

// Do schedules a task and waits for it to finish. Calling Do from the
// loop goroutine itself runs the task inline to avoid deadlock.
func (l *Loop) Do(task func()) {
	if l.OnLoop() {
		task()
		return
	}
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		task()
	})
	select {
	case <-done:
	case <-l.quit:
	}
}

// OnLoop reports whether the caller is the privileged goroutine.
func (l *Loop) OnLoop() bool {
	return l.gid.Load() != 0 && l.gid.Load() == goid()
}

// assert panics when called off the privileged goroutine. That is a
// programming error, never a recoverable condition.
func (l *Loop) assert() {
	if !l.OnLoop() {
		panic("icons: cache accessed off the privileged loop")
	}
}

// goid extracts the current goroutine id from the stack header.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
