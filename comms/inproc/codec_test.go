package inproc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameStored(t *testing.T) {
	payload := []byte("short")

	encoded, err := encodeFrame(payload, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(encoded[4:8]), "compression disabled stores the frame")

	decoded, err := decodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestFrameCompressed(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB, 0xCD}, 4096)

	encoded, err := encodeFrame(payload, 64)
	require.NoError(t, err)
	require.Less(t, len(encoded), len(payload), "repetitive payload must shrink")
	assert.NotEqual(t, uint32(0), binary.LittleEndian.Uint32(encoded[4:8]))

	decoded, err := decodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestFrameIncompressibleStored(t *testing.T) {
	// High-entropy payload above threshold: compression does not help, the
	// frame falls back to the stored form.
	payload := make([]byte, 512)
	state := uint32(0x9E3779B9)
	for i := range payload {
		state = state*1664525 + 1013904223
		payload[i] = byte(state >> 24)
	}

	encoded, err := encodeFrame(payload, 64)
	require.NoError(t, err)

	decoded, err := decodeFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestFrameEmpty(t *testing.T) {
	encoded, err := encodeFrame(nil, 64)
	require.NoError(t, err)

	decoded, err := decodeFrame(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeFrameTruncated(t *testing.T) {
	_, err := decodeFrame([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeFrameBadLength(t *testing.T) {
	encoded, err := encodeFrame([]byte("payload"), 0)
	require.NoError(t, err)

	// Header promises more bytes than the body holds.
	binary.LittleEndian.PutUint32(encoded[0:4], 1000)
	_, err = decodeFrame(encoded)
	require.Error(t, err)
}
