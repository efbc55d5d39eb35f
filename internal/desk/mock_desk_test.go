package desk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDeskDoubleStopCoastsOnce(t *testing.T) {
	mock := NewMockDesk(testCommands, 800, 500)
	mock.SetCoast(10, 10)

	require.NoError(t, mock.WriteCommand(testCommands.MoveUp))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, mock.WriteCommand(testCommands.Stop))
	after := mock.HeightMM()

	// A repeated stop must not coast again.
	require.NoError(t, mock.WriteCommand(testCommands.Stop))
	assert.Equal(t, after, mock.HeightMM())
}

func TestMockDeskFetchReportsHeight(t *testing.T) {
	mock := NewMockDesk(testCommands, 734, 500)

	var frames [][]byte
	require.NoError(t, mock.Subscribe(func(frame []byte) {
		frames = append(frames, append([]byte(nil), frame...))
	}))
	require.NoError(t, mock.WriteCommand(testCommands.FetchHeight))

	require.NotEmpty(t, frames)
	mm, ok, err := DecodeHeight(frames[len(frames)-1])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 734, mm)
}

func TestMockDeskClampsAtFloor(t *testing.T) {
	mock := NewMockDesk(testCommands, 2, 500)
	mock.SetCoast(0, 50)

	require.NoError(t, mock.WriteCommand(testCommands.MoveDown))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, mock.WriteCommand(testCommands.Stop))
	assert.GreaterOrEqual(t, mock.HeightMM(), 0.0)
}

func TestMockDeskWriteAfterClose(t *testing.T) {
	mock := NewMockDesk(testCommands, 800, 500)
	require.NoError(t, mock.Close())
	assert.Error(t, mock.WriteCommand(testCommands.Stop))
}
