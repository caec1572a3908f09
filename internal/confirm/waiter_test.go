package confirm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighter-mcp/internal/apperr"
	"lighter-mcp/internal/exchange"
)

// scripted returns statuses in order, repeating the last one.
type scripted struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	state exchange.TxState
	err   error
}

func (s *scripted) TxStatus(ctx context.Context, hash string) (exchange.TxStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	st := s.steps[i]
	if st.err != nil {
		return exchange.TxStatus{}, st.err
	}
	return exchange.TxStatus{Hash: hash, Name: string(st.state), State: st.state}, nil
}

func fast() Policy { return Policy{Timeout: 500 * time.Millisecond, Interval: 10 * time.Millisecond} }

func TestWaitReturnsOnNthPoll(t *testing.T) {
	for n := 1; n <= 5; n++ {
		steps := make([]step, 0, n)
		for i := 1; i < n; i++ {
			steps = append(steps, step{state: exchange.TxPending})
		}
		steps = append(steps, step{state: exchange.TxConfirmed})

		src := &scripted{steps: steps}
		w := NewWaiter(src, fast(), nil)

		r, err := w.Wait(context.Background(), "0xabc")
		require.NoError(t, err)
		assert.True(t, r.Confirmed())
		assert.True(t, r.Terminal())
		assert.Equal(t, n, r.Attempts)
		assert.Less(t, r.Elapsed, fast().Timeout)
	}
}

func TestWaitReturnsFailedReceipt(t *testing.T) {
	src := &scripted{steps: []step{{state: exchange.TxPending}, {state: exchange.TxFailed}}}
	r, err := NewWaiter(src, fast(), nil).Wait(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, r.Terminal())
	assert.False(t, r.Confirmed())
}

func TestWaitTimesOut(t *testing.T) {
	src := &scripted{steps: []step{{state: exchange.TxPending}}}
	p := Policy{Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond}

	start := time.Now()
	r, err := NewWaiter(src, fast(), nil).WaitWith(context.Background(), "0xabc", p)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TransactionTimeout))
	assert.Contains(t, err.Error(), "0xabc")
	assert.False(t, r.Terminal())
	assert.GreaterOrEqual(t, time.Since(start), p.Timeout)
}

func TestWaitRetriesLookupErrors(t *testing.T) {
	src := &scripted{steps: []step{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{state: exchange.TxConfirmed},
	}}
	r, err := NewWaiter(src, fast(), nil).Wait(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Attempts)
}

func TestWaitTimeoutReportsLastError(t *testing.T) {
	src := &scripted{steps: []step{{err: errors.New("connection reset")}}}
	p := Policy{Timeout: 30 * time.Millisecond, Interval: 10 * time.Millisecond}
	_, err := NewWaiter(src, p, nil).Wait(context.Background(), "0xabc")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TransactionTimeout))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWaitHonoursContext(t *testing.T) {
	src := &scripted{steps: []step{{state: exchange.TxPending}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWaiter(src, fast(), nil).Wait(ctx, "0xabc")
	assert.True(t, apperr.Is(err, apperr.TransactionTimeout))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidPolicy(t *testing.T) {
	src := &scripted{steps: []step{{state: exchange.TxConfirmed}}}
	_, err := NewWaiter(src, Policy{}, nil).Wait(context.Background(), "0xabc")
	assert.True(t, apperr.Is(err, apperr.InvalidParameter))
}
