package desk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCommands = Commands{
	Stop:        []byte{0xF1, 0xF1, 0x2B, 0x00, 0x2B, 0x7E},
	MoveUp:      []byte{0xF1, 0xF1, 0x01, 0x00, 0x01, 0x7E},
	MoveDown:    []byte{0xF1, 0xF1, 0x02, 0x00, 0x02, 0x7E},
	FetchHeight: []byte{0xF1, 0xF1, 0x07, 0x00, 0x07, 0x7E},
}

// newTestRig wires a simulated desk to a fresh state so that every frame the
// desk emits lands in the state, the way the notification pipeline does.
func newTestRig(t *testing.T, startMM, targetMM int, speedMMPerSec float64) (*MockDesk, *State) {
	t.Helper()
	mock := NewMockDesk(testCommands, startMM, speedMMPerSec)
	st := NewState(targetMM)
	require.NoError(t, mock.Subscribe(func(frame []byte) { Apply(st, frame) }))
	t.Cleanup(func() { _ = mock.Close() })
	return mock, st
}

func fastTuning() Tuning {
	return Tuning{
		OvershootUpMM:   0,
		OvershootDownMM: 0,
		FinalMarginMM:   2,
		NudgeCoarse:     25 * time.Millisecond,
		NudgeFine:       10 * time.Millisecond,
		Settle:          5 * time.Millisecond,
		NudgeLimit:      15,
	}
}

func newTestMover(mock *MockDesk, st *State, tun Tuning) *Mover {
	m := NewMover(mock, testCommands, st, tun)
	m.commandInterval = 2 * time.Millisecond
	m.initialTimeout = 100 * time.Millisecond
	return m
}

func TestMoverConvergesUpWithCompensation(t *testing.T) {
	mock, st := newTestRig(t, 850, 900, 200)
	mock.SetCoast(10, 10)

	tun := fastTuning()
	tun.OvershootUpMM = 10
	tun.OvershootDownMM = 10
	tun.FinalMarginMM = 5

	outcome, err := newTestMover(mock, st, tun).Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.LessOrEqual(t, abs(st.ErrorMM()), tun.FinalMarginMM)
	assert.InDelta(t, 900, mock.HeightMM(), float64(tun.FinalMarginMM)+1)
}

func TestMoverConvergesDown(t *testing.T) {
	mock, st := newTestRig(t, 1100, 1000, 200)

	outcome, err := newTestMover(mock, st, fastTuning()).Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.LessOrEqual(t, abs(st.ErrorMM()), fastTuning().FinalMarginMM)
	assert.Equal(t, "Target height reached. Complete.", st.Snapshot().Status)
}

func TestMoverNudgesCloseResidualError(t *testing.T) {
	// Compensation larger than the actual coast leaves the desk short of
	// the target, which only the nudge loop can close.
	mock, st := newTestRig(t, 800, 900, 200)

	tun := fastTuning()
	tun.OvershootUpMM = 10

	outcome, err := newTestMover(mock, st, tun).Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.LessOrEqual(t, abs(st.ErrorMM()), tun.FinalMarginMM)

	// The coarse approach alone stops around 890, so at least one nudge
	// must have issued a move after the double stop.
	writes := mock.Writes()
	var stops int
	for _, w := range writes {
		if string(w) == string(testCommands.Stop) {
			stops++
		}
	}
	assert.Greater(t, stops, 2)
}

func TestMoverAlreadyAtTarget(t *testing.T) {
	mock, st := newTestRig(t, 900, 900, 200)

	outcome, err := newTestMover(mock, st, fastTuning()).Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, 0, st.ErrorMM())
}

func TestMoverCancellation(t *testing.T) {
	mock, st := newTestRig(t, 500, 2000, 50)

	done := make(chan struct{})
	var outcome Outcome
	var err error
	m := newTestMover(mock, st, fastTuning())
	go func() {
		outcome, err = m.Run()
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	st.RequestQuit()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("mover did not stop promptly after quit")
	}
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)

	// The shutdown path always leaves the desk with a final stop.
	writes := mock.Writes()
	require.NotEmpty(t, writes)
	assert.Equal(t, testCommands.Stop, writes[len(writes)-1])
}

func TestMoverNoTelemetry(t *testing.T) {
	mock := NewMockDesk(testCommands, 800, 200)
	st := NewState(900)
	// No subscription: the state never learns a height.

	m := newTestMover(mock, st, fastTuning())
	outcome, err := m.Run()
	require.ErrorIs(t, err, ErrNoTelemetry)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Contains(t, st.Snapshot().Status, "no height data")
}
