package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// concurrencyProbe is an async rule that tracks how many instances run at once.
type concurrencyProbe struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (p *concurrencyProbe) rule(column string) Rule {
	return Rule{
		ID:      column + "_Probe",
		Column:  column,
		Message: column + " je povinné pole",
		Async: func(ctx context.Context, v Value, _ *Row) (bool, error) {
			n := p.active.Add(1)
			defer p.active.Add(-1)
			for {
				old := p.peak.Load()
				if n <= old || p.peak.CompareAndSwap(old, n) {
					break
				}
			}
			select {
			case <-time.After(time.Millisecond):
			case <-ctx.Done():
				return false, ctx.Err()
			}
			return !v.IsBlank(), nil
		},
	}
}

func TestValidateAll_LargeGrid(t *testing.T) {
	probe := &concurrencyProbe{}
	g := newTestGrid(t, []Rule{probe.rule("Email")}, DisabledThrottling(), 1000)

	records := make([]map[string]Value, 800)
	for i := range records {
		records[i] = map[string]Value{"Name": Text(fmt.Sprintf("user %d", i))}
		if i%4 != 0 {
			records[i]["Email"] = Text(fmt.Sprintf("user%d@firma.sk", i))
		}
	}
	_, err := g.LoadRows(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, 1000, g.RowCount())

	var (
		mu       sync.Mutex
		progress []BatchProgress
	)
	res, err := g.ValidateAll(context.Background(), func(p BatchProgress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, 800, res.Rows)
	assert.Equal(t, 800, res.ValidRows+res.InvalidRows)
	assert.Equal(t, 200, res.InvalidRows)
	assert.Len(t, res.Results, 800)

	assert.LessOrEqual(t, probe.peak.Load(), int32(5))
	assert.LessOrEqual(t, g.Status().Limiter.Peak, 5)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, progress, 80)
	complete := 0
	for i, p := range progress {
		assert.Equal(t, 800, p.Total)
		if i > 0 {
			assert.Greater(t, p.Processed, progress[i-1].Processed)
		}
		if p.Percent() == 100 {
			complete++
		}
	}
	assert.Equal(t, 1, complete, "100%% is reported exactly once")
	assert.Equal(t, 800, progress[len(progress)-1].Processed)
}

func TestValidateAll_NoDataRows(t *testing.T) {
	g := newTestGrid(t, []Rule{requiredRule("Email")}, DisabledThrottling(), 10)

	calls := 0
	ok, err := g.ValidateAllRows(context.Background(), func(BatchProgress) { calls++ })
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, calls)
}

func TestValidateAll_CancelledBetweenBatches(t *testing.T) {
	g := newTestGrid(t, []Rule{requiredRule("Email")}, DisabledThrottling(), 50)

	records := make([]map[string]Value, 30)
	for i := range records {
		records[i] = map[string]Value{"Name": Text("x")}
	}
	_, err := g.LoadRows(context.Background(), records)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := g.ValidateAll(ctx, func(p BatchProgress) {
		if p.Processed == ValidationBatchSize {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ValidationBatchSize, res.ValidRows+res.InvalidRows, "the started batch completes")
}

func TestValidateAll_PublishesProgress(t *testing.T) {
	g := newTestGrid(t, nil, DisabledThrottling(), 20)
	require.NoError(t, g.OnCellValueChanged(0, "Name", Text("x")))

	events, unsubscribe := g.Subscribe(8)
	defer unsubscribe()

	_, err := g.ValidateAll(context.Background(), nil)
	require.NoError(t, err)

	var got []Event
	for len(events) > 0 {
		got = append(got, <-events)
	}
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, EventBatchProgress, last.Kind)
	assert.Equal(t, -1, last.Row)
	require.NotNil(t, last.Progress)
	assert.Equal(t, BatchProgress{Processed: 1, Total: 1}, *last.Progress)
}

func TestBatchProgressPercent(t *testing.T) {
	assert.Equal(t, 100.0, BatchProgress{}.Percent())
	assert.Equal(t, 50.0, BatchProgress{Processed: 5, Total: 10}.Percent())
}
