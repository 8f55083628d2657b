package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	n     int64
	err   error
	calls int
}

func (f *fakeSweeper) SweepOverdue(ctx context.Context) (int64, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected a deadline")
	}
	return f.n, f.err
}

func TestRunOverdueSweep(t *testing.T) {
	f := &fakeSweeper{n: 3}
	n, err := RunOverdueSweep(context.Background(), f, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 1, f.calls)

	f.err = errors.New("db down")
	_, err = RunOverdueSweep(context.Background(), f, time.Second)
	assert.Error(t, err)
}

func TestAddOverdueSweepRejectsBadSchedule(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.AddOverdueSweep("not a cron", &fakeSweeper{}))
	assert.NoError(t, s.AddOverdueSweep("@every 1h", &fakeSweeper{}))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
