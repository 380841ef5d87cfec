package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type ExpirerMock struct{ mock.Mock }

func (m *ExpirerMock) ExpireDue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type countingExpirer struct{ calls atomic.Int32 }

func (c *countingExpirer) ExpireDue(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name string
		n    int
		err  error
		want int
	}{
		{name: "marks subscriptions", n: 3, want: 3},
		{name: "nothing due", n: 0, want: 0},
		{name: "error is logged", err: errors.New("db down"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := new(ExpirerMock)
			exp.On("ExpireDue", mock.Anything).Return(tt.n, tt.err).Once()

			got := New(exp, time.Minute, newNoopLogger()).RunOnce(context.Background())
			assert.Equal(t, tt.want, got)
			exp.AssertExpectations(t)
		})
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	exp := &countingExpirer{}
	svc := New(exp, 10*time.Millisecond, newNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return exp.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	svc := New(&countingExpirer{}, 0, newNoopLogger())
	assert.Equal(t, time.Hour, svc.interval)
}
