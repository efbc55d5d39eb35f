package desk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSnapshot(t *testing.T) {
	st := NewState(900)
	st.SetStatus("Moving UP...")
	st.SetHeight(850)

	snap := st.Snapshot()
	assert.Equal(t, "Moving UP...", snap.Status)
	assert.Equal(t, 850, snap.CurrentMM)
	assert.Equal(t, 900, snap.TargetMM)
	assert.Equal(t, 50, snap.ErrorMM)
}

func TestStateHeightKnownLatch(t *testing.T) {
	st := NewState(900)

	// A zero reading does not count as a known height.
	st.SetHeight(0)
	assert.False(t, st.AwaitHeightKnown(10*time.Millisecond))

	st.SetHeight(700)
	assert.True(t, st.AwaitHeightKnown(10*time.Millisecond))

	// Latched: later readings never un-know the height.
	st.SetHeight(710)
	assert.True(t, st.AwaitHeightKnown(time.Millisecond))
}

func TestStateQuitLatch(t *testing.T) {
	st := NewState(900)
	require.False(t, st.QuitRequested())

	st.RequestQuit()
	assert.True(t, st.QuitRequested())

	// Idempotent.
	st.RequestQuit()
	assert.True(t, st.QuitRequested())

	select {
	case <-st.Quit():
	default:
		t.Fatal("quit channel should be closed")
	}
}

func TestStateWait(t *testing.T) {
	st := NewState(900)

	start := time.Now()
	require.True(t, st.Wait(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// A pending quit interrupts the wait almost immediately.
	go func() {
		time.Sleep(10 * time.Millisecond)
		st.RequestQuit()
	}()
	start = time.Now()
	require.False(t, st.Wait(5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestStateAwaitHeightUnblocksOnQuit(t *testing.T) {
	st := NewState(900)
	go func() {
		time.Sleep(10 * time.Millisecond)
		st.RequestQuit()
	}()
	start := time.Now()
	assert.False(t, st.AwaitHeightKnown(5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}
