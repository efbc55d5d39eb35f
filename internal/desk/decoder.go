package desk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// heightMarker tags the height field inside a feedback frame. The two bytes
// following it encode the height in millimeters as a big-endian uint16. Most
// frames on the notify characteristic carry other telemetry and no marker.
var heightMarker = []byte{0xF2, 0xF2, 0x01, 0x03}

// ErrTruncatedFrame means a frame contained the height marker but was cut off
// before the two payload bytes. Non-fatal: the reading is discarded.
var ErrTruncatedFrame = errors.New("height marker found but payload truncated")

// DecodeHeight extracts the height from a raw notification frame.
// Returns (height, true, nil) when a reading is present, (0, false, nil) when
// the frame carries no height, and an error only for a malformed match.
func DecodeHeight(frame []byte) (int, bool, error) {
	i := bytes.Index(frame, heightMarker)
	if i < 0 {
		return 0, false, nil
	}
	payload := frame[i+len(heightMarker):]
	if len(payload) < 2 {
		return 0, false, ErrTruncatedFrame
	}
	return int(binary.BigEndian.Uint16(payload)), true, nil
}

// Apply decodes one notification frame into the state. Decode errors surface
// as status text only and leave the current height untouched.
func Apply(st *State, frame []byte) {
	mm, ok, err := DecodeHeight(frame)
	if err != nil {
		st.SetStatus(fmt.Sprintf("Parse error: %v", err))
		return
	}
	if ok {
		st.SetHeight(mm)
	}
}
