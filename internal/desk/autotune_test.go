package desk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastAutotuneParams() AutotuneParams {
	return AutotuneParams{
		Trials:           2,
		StartMarginMM:    50,
		ApproachOffsetMM: 5,
		RelocateSettle:   5 * time.Millisecond,
		CoastWindow:      10 * time.Millisecond,
		TrialPause:       5 * time.Millisecond,
	}
}

func newTestAutotuner(mock *MockDesk, st *State, setpointMM int) *Autotuner {
	a := NewAutotuner(mock, testCommands, st, setpointMM, fastAutotuneParams())
	a.commandInterval = 2 * time.Millisecond
	a.initialTimeout = 100 * time.Millisecond
	return a
}

func TestAutotunerMeasuresOvershoot(t *testing.T) {
	mock, st := newTestRig(t, 700, 800, 200)
	mock.SetCoast(15, 8)

	res, err := newTestAutotuner(mock, st, 800).Run()
	require.NoError(t, err)
	require.NotNil(t, res)

	// Each settled reading is the crossing sample plus the coast distance,
	// so the mean lands a little above the true coast.
	assert.InDelta(t, 15, res.OvershootUpMM, 3)
	assert.InDelta(t, 8, res.OvershootDownMM, 3)
	assert.Equal(t, "Autotune complete.", st.Snapshot().Status)
}

func TestAutotunerZeroCoast(t *testing.T) {
	mock, st := newTestRig(t, 750, 800, 200)

	res, err := newTestAutotuner(mock, st, 800).Run()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, 0, res.OvershootUpMM, 2)
	assert.InDelta(t, 0, res.OvershootDownMM, 2)
}

func TestAutotunerSymmetricCoast(t *testing.T) {
	mock, st := newTestRig(t, 750, 800, 200)
	mock.SetCoast(12, 12)

	res, err := newTestAutotuner(mock, st, 800).Run()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, res.OvershootUpMM, res.OvershootDownMM, 3)
}

func TestAutotunerCancelledReturnsNoResult(t *testing.T) {
	mock, st := newTestRig(t, 700, 800, 50)

	done := make(chan struct{})
	var res *AutotuneResult
	var err error
	a := newTestAutotuner(mock, st, 800)
	go func() {
		res, err = a.Run()
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	st.RequestQuit()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("autotuner did not stop promptly after quit")
	}
	require.NoError(t, err)
	assert.Nil(t, res)

	writes := mock.Writes()
	require.NotEmpty(t, writes)
	assert.Equal(t, testCommands.Stop, writes[len(writes)-1])
}

func TestAutotunerNoTelemetry(t *testing.T) {
	mock := NewMockDesk(testCommands, 700, 200)
	st := NewState(800)

	a := newTestAutotuner(mock, st, 800)
	res, err := a.Run()
	require.ErrorIs(t, err, ErrNoTelemetry)
	assert.Nil(t, res)
}
