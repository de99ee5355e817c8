// Package session drives one tester through a run: positional navigation
// over the runnable tests with an implicit save before every move.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

// Saver persists result changes for the run being driven.
type Saver interface {
	SaveResult(ctx context.Context, index int, upd result.Update) (result.TestResult, error)
	ClearResult(ctx context.Context, index int) (result.TestResult, error)
}

type SaveStatus int

const (
	SaveIdle SaveStatus = iota
	SaveSaving
	SaveSaved
	SaveFailed
)

func (s SaveStatus) String() string {
	switch s {
	case SaveSaving:
		return "saving"
	case SaveSaved:
		return "saved"
	case SaveFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Outcome says what a successful Save did.
type Outcome int

const (
	// OutcomeClean means there was nothing to write.
	OutcomeClean Outcome = iota
	OutcomeSaved
)

var (
	ErrClosed       = errors.New("session closed")
	ErrNoSubmission = errors.New("no result to submit")
)

// SaveError is returned when the saver fails. Navigation that triggered the
// save does not happen.
type SaveError struct {
	Index int
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save test %d: %v", e.Index, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Controller is safe for concurrent use. Saves for the same test index are
// serialized; a second save waits for the first to finish.
type Controller struct {
	saver Saver
	tests []testplan.Test

	mu       sync.Mutex
	position int
	results  map[int]result.TestResult
	state    json.RawMessage
	draft    *result.Submission
	dirty    bool
	gen      uint64 // bumped on every buffer change
	status   SaveStatus
	lastErr  error
	closed   bool
	inflight map[int]*semaphore.Weighted
}

// New starts a controller at position start (1-based, clamped). results are
// the run's stored results.
func New(saver Saver, tests []testplan.Test, results []result.TestResult, start int) (*Controller, error) {
	if saver == nil {
		return nil, fmt.Errorf("session saver required")
	}
	if len(tests) == 0 {
		return nil, fmt.Errorf("session has no tests to run")
	}
	c := &Controller{
		saver:    saver,
		tests:    tests,
		results:  make(map[int]result.TestResult, len(results)),
		inflight: make(map[int]*semaphore.Weighted, len(tests)),
	}
	for _, r := range results {
		c.results[r.Index] = r
	}
	c.position = clamp(start, 1, len(tests))
	return c, nil
}

func (c *Controller) Len() int { return len(c.tests) }

func (c *Controller) CurrentPosition() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *Controller) CurrentTest() testplan.Test {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tests[c.position-1]
}

// Tests returns the runnable tests in position order.
func (c *Controller) Tests() []testplan.Test {
	return c.tests
}

// Result returns the last saved result for the test at position.
func (c *Controller) Result(position int) (result.TestResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if position < 1 || position > len(c.tests) {
		return result.TestResult{}, false
	}
	r, ok := c.results[c.tests[position-1].Index]
	return r, ok
}

// Submitted reports whether the current test's stored result is submitted.
func (c *Controller) Submitted() bool {
	r, ok := c.Result(c.CurrentPosition())
	return ok && r.Submitted()
}

func (c *Controller) Status() SaveStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the error from the last failed save, if the last save failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// SetState buffers transient UI state for the current test.
func (c *Controller) SetState(state json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = append(json.RawMessage(nil), state...)
	c.dirty = true
	c.gen++
}

// SetResult buffers the result to send on the next submit.
func (c *Controller) SetResult(sub result.Submission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = &sub
	c.dirty = true
	c.gen++
}

// Save writes buffered changes for the current test. With withResult the
// buffered result is submitted too. A save with nothing to write returns
// OutcomeClean without calling the saver.
func (c *Controller) Save(ctx context.Context, withResult bool) (Outcome, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return OutcomeClean, ErrClosed
	}
	index := c.tests[c.position-1].Index
	gen := c.gen
	upd := result.Update{}
	if c.dirty && c.state != nil {
		upd.State = c.state
	}
	if withResult {
		if c.draft == nil {
			c.mu.Unlock()
			return OutcomeClean, ErrNoSubmission
		}
		upd.Result = c.draft
	}
	c.mu.Unlock()

	if upd.Empty() {
		return OutcomeClean, nil
	}
	if _, err := c.write(ctx, index, gen, func() (result.TestResult, error) {
		return c.saver.SaveResult(ctx, index, upd)
	}); err != nil {
		return OutcomeClean, err
	}
	return OutcomeSaved, nil
}

// Submit saves the current test with its buffered result.
func (c *Controller) Submit(ctx context.Context) (result.TestResult, error) {
	if _, err := c.Save(ctx, true); err != nil {
		return result.TestResult{}, err
	}
	r, _ := c.Result(c.CurrentPosition())
	return r, nil
}

func (c *Controller) Next(ctx context.Context) error {
	return c.move(ctx, func(pos int) int { return pos + 1 })
}

func (c *Controller) Previous(ctx context.Context) error {
	return c.move(ctx, func(pos int) int { return pos - 1 })
}

// GoTo jumps to position after saving the current test.
func (c *Controller) GoTo(ctx context.Context, position int) error {
	if position < 1 || position > len(c.tests) {
		return fmt.Errorf("position %d out of range 1..%d", position, len(c.tests))
	}
	return c.move(ctx, func(int) int { return position })
}

func (c *Controller) move(ctx context.Context, next func(int) int) error {
	if _, err := c.Save(ctx, false); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	target := clamp(next(c.position), 1, len(c.tests))
	if target != c.position {
		c.position = target
		c.resetBuffer()
	}
	return nil
}

// EditTest withdraws the current test's submission so it can be changed.
// Recorded scenario data is kept.
func (c *Controller) EditTest(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	index := c.tests[c.position-1].Index
	gen := c.gen
	upd := result.Update{Reopen: true}
	if c.dirty && c.state != nil {
		upd.State = c.state
	}
	c.mu.Unlock()

	_, err := c.write(ctx, index, gen, func() (result.TestResult, error) {
		return c.saver.SaveResult(ctx, index, upd)
	})
	return err
}

// StartOver resets the current test to not started and drops the buffer.
func (c *Controller) StartOver(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	index := c.tests[c.position-1].Index
	gen := c.gen
	c.mu.Unlock()

	if _, err := c.write(ctx, index, gen, func() (result.TestResult, error) {
		return c.saver.ClearResult(ctx, index)
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.resetBuffer()
	c.mu.Unlock()
	return nil
}

// Close saves pending changes and ends the session. If the save fails the
// session stays open.
func (c *Controller) Close(ctx context.Context) error {
	if _, err := c.Save(ctx, false); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// write runs fn while holding the slot for index and records the outcome.
// gen is the buffer generation fn was built from; the buffer stays dirty if
// it changed while fn ran.
func (c *Controller) write(ctx context.Context, index int, gen uint64, fn func() (result.TestResult, error)) (result.TestResult, error) {
	sem := c.slot(index)
	if err := sem.Acquire(ctx, 1); err != nil {
		return result.TestResult{}, &SaveError{Index: index, Err: err}
	}
	defer sem.Release(1)

	c.mu.Lock()
	c.status = SaveSaving
	c.mu.Unlock()

	r, err := fn()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status = SaveFailed
		c.lastErr = err
		return result.TestResult{}, &SaveError{Index: index, Err: err}
	}
	c.status = SaveSaved
	c.lastErr = nil
	c.results[index] = r
	if c.tests[c.position-1].Index == index && c.gen == gen {
		c.dirty = false
	}
	return r, nil
}

func (c *Controller) slot(index int) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.inflight[index]
	if !ok {
		sem = semaphore.NewWeighted(1)
		c.inflight[index] = sem
	}
	return sem
}

// resetBuffer must be called with mu held.
func (c *Controller) resetBuffer() {
	c.state = nil
	c.draft = nil
	c.dirty = false
	c.gen++
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
