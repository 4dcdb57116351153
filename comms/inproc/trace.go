package inproc

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// traceLog is an append-only, zstd-compressed record of every frame that
// crossed the hub. Entry format (little endian):
//
//	[Src uint32][Dst uint32][Rows uint32][FrameLen uint32][Frame...]
//
// Frames are recorded in their wire form (header plus possibly compressed
// payload), so a replay tool sees exactly what the receiving rank saw.
type traceLog struct {
	mu      sync.Mutex
	file    *os.File
	encoder *zstd.Encoder
}

func newTraceLog(path string) (*traceLog, error) {
	file, err := os.Create(path) //nolint:gosec // G304: path is operator-supplied configuration
	if err != nil {
		return nil, err
	}
	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &traceLog{file: file, encoder: encoder}, nil
}

func (t *traceLog) record(src, dst, rows int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var header [16]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(src))
	binary.LittleEndian.PutUint32(header[4:8], uint32(dst))
	binary.LittleEndian.PutUint32(header[8:12], uint32(rows))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(data)))

	if _, err := t.encoder.Write(header[:]); err != nil {
		return err
	}
	if _, err := t.encoder.Write(data); err != nil {
		return err
	}
	return nil
}

func (t *traceLog) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.encoder.Close(); err != nil {
		_ = t.file.Close()
		return fmt.Errorf("close trace encoder: %w", err)
	}
	return t.file.Close()
}
