package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// decodeMetadata returns the JSON document stored in a metadata column.
// Plain JSON is returned as is; anything else is treated as a zlib stream.
func decodeMetadata(blob []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflating metadata: %w", err)
	}
	return data, nil
}

// encodeMetadata zlib-compresses a JSON document.
func encodeMetadata(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compressing metadata: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing metadata: %w", err)
	}
	return buf.Bytes(), nil
}
