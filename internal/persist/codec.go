package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ajaxzhan/simos/internal/system"
)

// FormatVersion is written into every encoded snapshot.
const FormatVersion = 1

var magic = []byte("SIMOS1")

// ErrBadSnapshot is returned when stored bytes cannot be decoded.
var ErrBadSnapshot = errors.New("bad snapshot encoding")

type envelope struct {
	Version  int             `json:"version"`
	SavedAt  time.Time       `json:"saved_at"`
	Snapshot system.Snapshot `json:"snapshot"`
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Encode serializes snap as zstd-compressed JSON behind a magic header.
func Encode(snap system.Snapshot) ([]byte, error) {
	raw, err := json.Marshal(envelope{Version: FormatVersion, SavedAt: time.Now().UTC(), Snapshot: snap})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	out := append([]byte(nil), magic...)
	return encoder.EncodeAll(raw, out), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*system.Snapshot, error) {
	if !bytes.HasPrefix(data, magic) {
		return nil, fmt.Errorf("%w: missing header", ErrBadSnapshot)
	}
	raw, err := decoder.DecodeAll(data[len(magic):], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, env.Version)
	}
	return &env.Snapshot, nil
}
