package inproc

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Frame format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the data is stored uncompressed.
const frameHeaderSize = 8

// encodeFrame wraps payload in a frame header, LZ4-compressing it when it
// exceeds threshold and compression actually helps. threshold <= 0 disables
// compression.
func encodeFrame(payload []byte, threshold int) ([]byte, error) {
	if threshold > 0 && len(payload) > threshold {
		compressed := make([]byte, frameHeaderSize+lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, compressed[frameHeaderSize:], nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n > 0 && n < len(payload) {
			binary.LittleEndian.PutUint32(compressed[0:4], uint32(len(payload)))
			binary.LittleEndian.PutUint32(compressed[4:8], uint32(n))
			return compressed[:frameHeaderSize+n], nil
		}
		// Incompressible, fall through to the stored form.
	}

	out := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(out[4:8], 0)
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

// decodeFrame unwraps a frame produced by encodeFrame.
func decodeFrame(data []byte) ([]byte, error) {
	if len(data) < frameHeaderSize {
		return nil, fmt.Errorf("frame of %d bytes shorter than header", len(data))
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[0:4])
	compressedSize := binary.LittleEndian.Uint32(data[4:8])
	body := data[frameHeaderSize:]

	if compressedSize == 0 {
		if uint32(len(body)) != uncompressedSize {
			return nil, fmt.Errorf("stored frame holds %d bytes, header says %d", len(body), uncompressedSize)
		}
		return body, nil
	}

	if uint32(len(body)) != compressedSize {
		return nil, fmt.Errorf("compressed frame holds %d bytes, header says %d", len(body), compressedSize)
	}
	out := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return nil, fmt.Errorf("lz4 uncompress: %w", err)
	}
	if uint32(n) != uncompressedSize {
		return nil, fmt.Errorf("frame decompressed to %d bytes, header says %d", n, uncompressedSize)
	}
	return out, nil
}
