package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbonatakis/testqueue/internal/result"
	"github.com/jbonatakis/testqueue/internal/testplan"
)

type call struct {
	kind  string
	index int
	upd   result.Update
}

type fakeSaver struct {
	mu      sync.Mutex
	calls   []call
	fail    error
	block   chan struct{}
	active  int
	maxSeen int
}

func (f *fakeSaver) SaveResult(ctx context.Context, index int, upd result.Update) (result.TestResult, error) {
	return f.do(call{kind: "save", index: index, upd: upd})
}

func (f *fakeSaver) ClearResult(ctx context.Context, index int) (result.TestResult, error) {
	return f.do(call{kind: "clear", index: index})
}

func (f *fakeSaver) do(c call) (result.TestResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	block, fail := f.block, f.fail
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	if fail != nil {
		return result.TestResult{}, fail
	}
	r := result.TestResult{Index: c.index, State: c.upd.State}
	if c.upd.Result != nil {
		now := time.Now()
		r.SubmittedAt = &now
		r.ScenarioResults = c.upd.Result.ScenarioResults
	}
	return r, nil
}

func (f *fakeSaver) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func runTests() []testplan.Test {
	return []testplan.Test{
		{ID: "navigate", Index: 1, Title: "Navigate"},
		{ID: "operate", Index: 2, Title: "Operate"},
		{ID: "read-group", Index: 5, Title: "Read group"},
	}
}

func newController(t *testing.T, saver Saver, start int) *Controller {
	t.Helper()
	c, err := New(saver, runTests(), nil, start)
	require.NoError(t, err)
	return c
}

func TestNavigationIsPositionalAndClamped(t *testing.T) {
	saver := &fakeSaver{}
	c := newController(t, saver, 0)
	ctx := context.Background()

	assert.Equal(t, 1, c.CurrentPosition())
	require.NoError(t, c.Previous(ctx))
	assert.Equal(t, 1, c.CurrentPosition())

	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.Next(ctx))
	assert.Equal(t, 3, c.CurrentPosition())
	assert.Equal(t, 5, c.CurrentTest().Index, "position is not the stored index")
	require.NoError(t, c.Next(ctx))
	assert.Equal(t, 3, c.CurrentPosition())

	require.NoError(t, c.GoTo(ctx, 2))
	assert.Equal(t, "operate", c.CurrentTest().ID)
	assert.Error(t, c.GoTo(ctx, 4))
	assert.Error(t, c.GoTo(ctx, 0))

	assert.Empty(t, saver.Calls(), "clean navigation never writes")
	assert.Equal(t, SaveIdle, c.Status())
}

func TestNavigationSavesBufferedStateFirst(t *testing.T) {
	saver := &fakeSaver{}
	c := newController(t, saver, 1)
	ctx := context.Background()

	c.SetState(json.RawMessage(`{"checked":["role"]}`))
	require.NoError(t, c.Next(ctx))

	calls := saver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].index)
	assert.JSONEq(t, `{"checked":["role"]}`, string(calls[0].upd.State))
	assert.Nil(t, calls[0].upd.Result)
	assert.Equal(t, 2, c.CurrentPosition())
	assert.False(t, c.Dirty())
	assert.Equal(t, SaveSaved, c.Status())

	r, ok := c.Result(1)
	require.True(t, ok)
	assert.JSONEq(t, `{"checked":["role"]}`, string(r.State))
}

func TestFailedSaveAbortsNavigation(t *testing.T) {
	boom := errors.New("connection reset")
	saver := &fakeSaver{fail: boom}
	c := newController(t, saver, 2)
	ctx := context.Background()

	c.SetState(json.RawMessage(`{}`))
	err := c.Next(ctx)
	var se *SaveError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Index)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, c.CurrentPosition())
	assert.Equal(t, SaveFailed, c.Status())
	assert.ErrorIs(t, c.Err(), boom)
	assert.True(t, c.Dirty(), "buffer survives a failed save")

	saver.mu.Lock()
	saver.fail = nil
	saver.mu.Unlock()
	require.NoError(t, c.Next(ctx))
	assert.Equal(t, 3, c.CurrentPosition())
	assert.NoError(t, c.Err())
}

func TestSaveOutcomes(t *testing.T) {
	saver := &fakeSaver{}
	c := newController(t, saver, 1)
	ctx := context.Background()

	out, err := c.Save(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeClean, out)

	_, err = c.Save(ctx, true)
	assert.ErrorIs(t, err, ErrNoSubmission)

	c.SetResult(result.Submission{ScenarioResults: []result.ScenarioResult{{ScenarioID: "s1"}}})
	r, err := c.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, r.Submitted())
	assert.True(t, c.Submitted())
	require.Len(t, saver.Calls(), 1)
	assert.NotNil(t, saver.Calls()[0].upd.Result)
}

func TestEditTestReopensSubmission(t *testing.T) {
	saver := &fakeSaver{}
	c := newController(t, saver, 1)
	ctx := context.Background()

	require.NoError(t, c.EditTest(ctx))
	calls := saver.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].upd.Reopen)
	assert.Nil(t, calls[0].upd.Result)
	assert.False(t, c.Submitted())
}

func TestStartOverClearsAndDropsBuffer(t *testing.T) {
	saver := &fakeSaver{}
	c := newController(t, saver, 3)
	ctx := context.Background()

	c.SetState(json.RawMessage(`{"partial":true}`))
	require.NoError(t, c.StartOver(ctx))
	assert.False(t, c.Dirty())

	calls := saver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "clear", calls[0].kind)
	assert.Equal(t, 5, calls[0].index)

	require.NoError(t, c.Next(ctx))
	assert.Len(t, saver.Calls(), 1, "nothing left to save after start over")
}

func TestCloseSavesThenBlocksFurtherWork(t *testing.T) {
	saver := &fakeSaver{}
	c := newController(t, saver, 1)
	ctx := context.Background()

	c.SetState(json.RawMessage(`{"done":false}`))
	require.NoError(t, c.Close(ctx))
	assert.True(t, c.Closed())
	assert.Len(t, saver.Calls(), 1)

	assert.ErrorIs(t, c.Next(ctx), ErrClosed)
	assert.ErrorIs(t, c.StartOver(ctx), ErrClosed)
	assert.ErrorIs(t, c.EditTest(ctx), ErrClosed)
	assert.NoError(t, c.Close(ctx))
}

func TestCloseStaysOpenWhenSaveFails(t *testing.T) {
	saver := &fakeSaver{fail: errors.New("offline")}
	c := newController(t, saver, 1)
	c.SetState(json.RawMessage(`{}`))
	require.Error(t, c.Close(context.Background()))
	assert.False(t, c.Closed())
}

func TestSavesForSameIndexAreSingleFlight(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{})}
	c := newController(t, saver, 1)
	ctx := context.Background()
	c.SetState(json.RawMessage(`{"n":1}`))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.write(ctx, 1, 0, func() (result.TestResult, error) {
				return saver.SaveResult(ctx, 1, result.Update{State: json.RawMessage(`{}`)})
			})
		}()
	}

	require.Eventually(t, func() bool { return len(saver.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	saver.block <- struct{}{}
	require.Eventually(t, func() bool { return len(saver.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	saver.block <- struct{}{}
	wg.Wait()

	saver.mu.Lock()
	defer saver.mu.Unlock()
	assert.Equal(t, 1, saver.maxSeen)
}

func TestStateBufferedDuringSaveIsNotDropped(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{})}
	c := newController(t, saver, 1)
	ctx := context.Background()
	c.SetState(json.RawMessage(`{"v":1}`))

	done := make(chan error, 1)
	go func() {
		_, err := c.Save(ctx, false)
		done <- err
	}()
	require.Eventually(t, func() bool { return len(saver.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	c.SetState(json.RawMessage(`{"v":2}`))
	saver.block <- struct{}{}
	require.NoError(t, <-done)
	assert.True(t, c.Dirty(), "state buffered mid-save must stay dirty")

	saver.mu.Lock()
	saver.block = nil
	saver.mu.Unlock()
	require.NoError(t, c.Next(ctx))

	calls := saver.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 1, calls[1].index)
	assert.JSONEq(t, `{"v":2}`, string(calls[1].upd.State))
	assert.Equal(t, 2, c.CurrentPosition())
}

func TestSaveWaitRespectsContext(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{})}
	c := newController(t, saver, 1)
	c.SetState(json.RawMessage(`{}`))

	done := make(chan error, 1)
	go func() {
		_, err := c.Save(context.Background(), false)
		done <- err
	}()
	require.Eventually(t, func() bool { return len(saver.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Save(ctx, false)
	var se *SaveError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, context.Canceled)

	saver.block <- struct{}{}
	require.NoError(t, <-done)
}

func TestNewValidatesInput(t *testing.T) {
	_, err := New(nil, runTests(), nil, 1)
	assert.Error(t, err)
	_, err = New(&fakeSaver{}, nil, nil, 1)
	assert.Error(t, err)

	c, err := New(&fakeSaver{}, runTests(), []result.TestResult{{Index: 2, State: json.RawMessage(`{}`)}}, 9)
	require.NoError(t, err)
	assert.Equal(t, 3, c.CurrentPosition())
	_, ok := c.Result(2)
	assert.True(t, ok)
	assert.Equal(t, "saved", SaveSaved.String())
}
