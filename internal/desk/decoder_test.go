package desk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeight(t *testing.T) {
	// Marker at the start of the frame.
	mm, ok, err := DecodeHeight([]byte{0xF2, 0xF2, 0x01, 0x03, 0x02, 0xA8, 0x00})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 680, mm)

	// Marker preceded by unrelated bytes.
	mm, ok, err = DecodeHeight([]byte{0x00, 0x1B, 0xF2, 0xF2, 0x01, 0x03, 0x04, 0x4C})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1100, mm)
}

func TestDecodeHeightNoMarker(t *testing.T) {
	for _, frame := range [][]byte{
		nil,
		{},
		{0xF2},
		{0xF2, 0xF2, 0x01},
		{0xF2, 0xF2, 0x02, 0x03, 0x01, 0x00},
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
	} {
		_, ok, err := DecodeHeight(frame)
		require.NoError(t, err)
		assert.False(t, ok, "frame % X should not decode", frame)
	}
}

func TestDecodeHeightTruncated(t *testing.T) {
	for _, frame := range [][]byte{
		{0xF2, 0xF2, 0x01, 0x03},
		{0xF2, 0xF2, 0x01, 0x03, 0x02},
		{0xAA, 0xF2, 0xF2, 0x01, 0x03, 0x02},
	} {
		_, _, err := DecodeHeight(frame)
		require.ErrorIs(t, err, ErrTruncatedFrame, "frame % X", frame)
	}
}

func TestDecodeHeightDeterministic(t *testing.T) {
	frame := []byte{0xF2, 0xF2, 0x01, 0x03, 0x03, 0x20, 0x07}
	first, ok, err := DecodeHeight(frame)
	require.NoError(t, err)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		mm, ok, err := DecodeHeight(frame)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, first, mm)
	}
}

func TestApply(t *testing.T) {
	st := NewState(900)

	// Frames without the marker leave the state untouched.
	Apply(st, []byte{0x01, 0x02, 0x03})
	assert.Equal(t, 0, st.CurrentMM())

	Apply(st, []byte{0xF2, 0xF2, 0x01, 0x03, 0x03, 0x52})
	assert.Equal(t, 850, st.CurrentMM())
	assert.Equal(t, 50, st.ErrorMM())

	// A truncated frame reports a parse error but keeps the last height.
	Apply(st, []byte{0xF2, 0xF2, 0x01, 0x03, 0x03})
	assert.Equal(t, 850, st.CurrentMM())
	assert.Contains(t, st.Snapshot().Status, "Parse error")
}
