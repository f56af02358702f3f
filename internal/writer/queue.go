// Package writer serialises mutations per ledger. Each busy key owns a lane,
// a goroutine that runs submitted commands one at a time in arrival order.
// Commands for different keys run concurrently.
package writer

import (
	"errors"
	"fmt"
	"sync"
)

// RegistryKey is the lane for operations that span ledgers, such as creating
// a ledger or changing the default. When both are needed the registry lane is
// always entered first.
const RegistryKey = "registry"

// ErrClosed is returned for commands submitted after Close.
var ErrClosed = errors.New("writer: queue closed")

type command struct {
	fn   func() error
	done chan error
}

// lane runs the commands for one key. pending counts commands submitted but
// not yet finished; the lane exits and leaves the map when it drops to zero.
type lane struct {
	key      string
	commands chan command
	pending  int
}

// Queue runs commands on per-key lanes.
type Queue struct {
	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewQueue creates an empty queue. Lanes start on first use and stop once
// they have nothing left to run.
func NewQueue() *Queue {
	return &Queue{
		lanes: make(map[string]*lane),
		quit:  make(chan struct{}),
	}
}

// Do runs fn on the lane for key and waits for it to finish. fn must not call
// Do with the same key, since the lane is busy running fn.
func (q *Queue) Do(key string, fn func() error) error {
	l, err := q.acquire(key)
	if err != nil {
		return err
	}
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case l.commands <- cmd:
	case <-q.quit:
		return ErrClosed
	}
	return <-cmd.done
}

// Lanes returns the number of live lanes.
func (q *Queue) Lanes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

func (q *Queue) acquire(key string) (*lane, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	l, ok := q.lanes[key]
	if !ok {
		l = &lane{key: key, commands: make(chan command)}
		q.lanes[key] = l
		q.wg.Add(1)
		go q.run(l)
	}
	l.pending++
	return l, nil
}

// release marks one command of l finished and reports whether the lane is
// idle and has been removed.
func (q *Queue) release(l *lane) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	l.pending--
	if l.pending > 0 {
		return false
	}
	delete(q.lanes, l.key)
	return true
}

func (q *Queue) run(l *lane) {
	defer q.wg.Done()
	for {
		select {
		case cmd := <-l.commands:
			err := safeRun(cmd.fn)
			idle := q.release(l)
			cmd.done <- err
			if idle {
				return
			}
		case <-q.quit:
			return
		}
	}
}

// safeRun keeps a panicking command from killing its lane.
func safeRun(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writer: command panicked: %v", r)
		}
	}()
	return fn()
}

// Close stops every lane and waits for running commands to finish. Commands
// that have not started fail with ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()
	q.wg.Wait()
}
