// Package compression provides compression and decompression for checkpoint
// part payloads.
//
// Each checkpoint part is stored with a 1-byte codec indicator in its frame
// header followed by the compressed (or uncompressed) action payload. Commit
// files are never compressed; they must stay line-readable by any protocol
// implementation.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type represents a compression algorithm.
type Type uint8

const (
	// None indicates no compression.
	None Type = 0x0

	// Snappy uses Google Snappy compression.
	Snappy Type = 0x1

	// LZ4 uses LZ4 frame compression.
	LZ4 Type = 0x2

	// Zstd uses Zstandard compression.
	Zstd Type = 0x3
)

// String returns the human-readable name of the compression type.
func (t Type) String() string {
	switch t {
	case None:
		return "None"
	case Snappy:
		return "Snappy"
	case LZ4:
		return "LZ4"
	case Zstd:
		return "ZSTD"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// IsSupported returns true if the compression type is supported.
func (t Type) IsSupported() bool {
	switch t {
	case None, Snappy, LZ4, Zstd:
		return true
	default:
		return false
	}
}

// Compress compresses data using the specified compression type.
func Compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case None:
		return data, nil

	case Snappy:
		return snappy.Encode(nil, data), nil

	case LZ4:
		return compressLZ4(data)

	case Zstd:
		return compressZstd(data)

	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer func() { _ = encoder.Close() }()
	return encoder.EncodeAll(data, nil), nil
}

// Decompress decompresses data using the specified compression type.
func Decompress(t Type, data []byte) ([]byte, error) {
	switch t {
	case None:
		return data, nil

	case Snappy:
		return snappy.Decode(nil, data)

	case LZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)

	case Zstd:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		return decoder.DecodeAll(data, nil)

	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}
