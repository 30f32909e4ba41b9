package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRule fails every value and records the values it saw.
type recordingRule struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingRule) rule(column string) Rule {
	return Rule{
		ID:      column + "_Record",
		Column:  column,
		Message: "zaznamenané",
		Predicate: func(v Value, _ *Row) bool {
			r.mu.Lock()
			r.seen = append(r.seen, v.String())
			r.mu.Unlock()
			return false
		},
	}
}

func (r *recordingRule) values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func typingConfig(delay time.Duration) ThrottlingConfig {
	cfg := DefaultThrottling()
	cfg.TypingDelay = delay
	cfg.PasteDelay = delay
	cfg.MinValidationInterval = 0
	return cfg
}

func waitIdle(t *testing.T, g *Grid) {
	t.Helper()
	require.Eventually(t, func() bool {
		return g.PendingValidations() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestThrottle_DebounceCollapsesEdits(t *testing.T) {
	rec := &recordingRule{}
	g := newTestGrid(t, []Rule{rec.rule("Name")}, typingConfig(50*time.Millisecond), 5)

	for _, v := range []string{"a", "ab", "abc"} {
		require.NoError(t, g.OnCellValueChanged(0, "Name", Text(v)))
	}
	assert.Equal(t, StateDebouncing, g.CellState(0, "Name"))
	assert.Empty(t, rec.values(), "nothing runs before the typing delay")

	waitIdle(t, g)
	require.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"abc"}, rec.values())
	assert.Equal(t, StateIdle, g.CellState(0, "Name"))
}

func TestThrottle_DisabledValidatesSynchronously(t *testing.T) {
	rec := &recordingRule{}
	g := newTestGrid(t, []Rule{rec.rule("Name")}, DisabledThrottling(), 5)

	require.NoError(t, g.OnCellValueChanged(0, "Name", Text("a")))
	require.NoError(t, g.OnCellValueChanged(0, "Name", Text("ab")))

	assert.Equal(t, []string{"a", "ab"}, rec.values())
	assert.Equal(t, []string{"zaznamenané"}, cellOf(t, g, 0, "Name").Errors())
	assert.Zero(t, g.PendingValidations())
}

func TestThrottle_NewEditSupersedesRunning(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 4)
	rule := Rule{ID: "slow", Column: "Name", Message: "chyba", Timeout: time.Second,
		Async: func(ctx context.Context, v Value, _ *Row) (bool, error) {
			calls.Add(1)
			started <- struct{}{}
			if v.String() == "first" {
				<-ctx.Done()
				return false, ctx.Err()
			}
			return false, nil
		}}
	g := newTestGrid(t, []Rule{rule}, typingConfig(5*time.Millisecond), 5)

	require.NoError(t, g.OnCellValueChanged(0, "Name", Text("first")))
	<-started
	assert.Equal(t, StateRunning, g.CellState(0, "Name"))

	require.NoError(t, g.OnCellValueChanged(0, "Name", Text("second")))
	<-started
	waitIdle(t, g)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"chyba"}, cellOf(t, g, 0, "Name").Errors())
}

func TestThrottle_EmptyRowClearsWithoutValidating(t *testing.T) {
	rec := &recordingRule{}
	g := newTestGrid(t, []Rule{rec.rule("Name")}, typingConfig(10*time.Millisecond), 5)

	require.NoError(t, g.OnCellValueChanged(0, "Name", Text("x")))
	require.NoError(t, g.OnCellValueChanged(0, "Name", Null()))
	waitIdle(t, g)

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.values())
	assert.False(t, cellOf(t, g, 0, "Name").HasErrors())
}

func TestThrottle_MinValidationInterval(t *testing.T) {
	rec := &recordingRule{}
	cfg := typingConfig(0)
	cfg.MinValidationInterval = 80 * time.Millisecond
	g := newTestGrid(t, []Rule{rec.rule("Name")}, cfg, 5)

	require.NoError(t, g.OnCellValueChanged(0, "Name", Text("a")))
	waitIdle(t, g)
	start := time.Now()
	require.NoError(t, g.OnCellValueChanged(0, "Name", Text("b")))
	waitIdle(t, g)

	assert.Equal(t, []string{"a", "b"}, rec.values())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestThrottle_LastRunPruned(t *testing.T) {
	cfg := typingConfig(0)
	cfg.MinValidationInterval = time.Minute
	th := NewThrottle(context.Background(), cfg, nil)
	t.Cleanup(func() { _ = th.Close(context.Background()) })

	old := time.Now().Add(-2 * time.Minute)
	for i := range 2 * lastRunSweepMin {
		th.lastRun[cellKey{row: i, column: "Name"}] = old
	}
	th.sweepAt = len(th.lastRun)

	th.markRun(cellKey{row: 0, column: "Email"})
	assert.Len(t, th.lastRun, 1)
	assert.Equal(t, lastRunSweepMin, th.sweepAt)

	key := cellKey{row: 1, column: "Email"}
	th.lastRun[key] = old
	th.finish(key, newPending(func() {}))
	assert.NotContains(t, th.lastRun, key)

	fresh := cellKey{row: 2, column: "Email"}
	th.markRun(fresh)
	th.finish(fresh, newPending(func() {}))
	assert.Contains(t, th.lastRun, fresh, "kept until the interval has passed")
}

func TestThrottle_PasteEmptyingRowClearsIt(t *testing.T) {
	g := newTestGrid(t, []Rule{requiredRule("Email")}, typingConfig(10*time.Millisecond), 5)

	require.NoError(t, g.OnCellValueChanged(0, "Name", Text("Jana")))
	waitIdle(t, g)
	_, err := g.ValidateRow(context.Background(), 0)
	require.NoError(t, err)
	r, _ := g.Row(0)
	require.True(t, r.HasErrors())

	n, err := g.Paste(0, "Name", [][]Value{{Null()}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	assert.False(t, r.HasErrors())
	assert.Empty(t, cellOf(t, g, 0, "Email").Errors())
	assert.Zero(t, g.PendingValidations())
}

func TestThrottle_CancelRow(t *testing.T) {
	rec := &recordingRule{}
	g := newTestGrid(t, []Rule{rec.rule("Name")}, typingConfig(time.Hour), 5)

	require.NoError(t, g.OnCellValueChanged(1, "Name", Text("x")))
	require.Equal(t, 1, g.PendingValidations())

	g.throttle.CancelRow(1)
	assert.Zero(t, g.PendingValidations())
	assert.Empty(t, rec.values())
}

func TestThrottle_CloseCancelsPending(t *testing.T) {
	rec := &recordingRule{}
	g, err := NewGrid(personColumns, []Rule{rec.rule("Name")}, typingConfig(time.Hour), 5)
	require.NoError(t, err)

	for i := range 3 {
		require.NoError(t, g.OnCellValueChanged(i, "Name", Text("x")))
	}
	require.Equal(t, 3, g.PendingValidations())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Close(ctx))

	assert.Zero(t, g.PendingValidations())
	assert.Empty(t, rec.values())
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), 0))
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.False(t, sleepCtx(ctx, 0))
}

func TestThrottleStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "debouncing", StateDebouncing.String())
	assert.Equal(t, "running", StateRunning.String())
}
