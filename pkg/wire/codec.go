package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MaxElements is the largest array a framed snapshot may carry. Waveform
// PVs routinely exceed the CBOR library's default of 131072 elements.
const MaxElements = 1 << 24

// Snapshots are framed deterministically so that equal snapshots produce
// equal frames. Decoding skips unknown keys.
var (
	snapshotEncMode = func() cbor.EncMode {
		m, err := cbor.EncOptions{
			Sort:          cbor.SortCanonical,
			IndefLength:   cbor.IndefLengthForbidden,
			NilContainers: cbor.NilContainerAsNull,
		}.EncMode()
		if err != nil {
			panic(fmt.Sprintf("wire: snapshot encoder mode: %v", err))
		}
		return m
	}()

	snapshotDecMode = func() cbor.DecMode {
		m, err := cbor.DecOptions{
			DupMapKey:         cbor.DupMapKeyEnforcedAPF,
			IndefLength:       cbor.IndefLengthAllowed,
			ExtraReturnErrors: cbor.ExtraDecErrorNone,
			MaxArrayElements:  MaxElements,
		}.DecMode()
		if err != nil {
			panic(fmt.Sprintf("wire: snapshot decoder mode: %v", err))
		}
		return m
	}()
)

// MarshalSnapshot frames a snapshot for delivery to a remote peer. The
// snapshot is validated first.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	data, err := snapshotEncMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: frame snapshot: %w", ErrEncoding, err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes and validates a frame produced by
// MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := snapshotDecMode.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %w", ErrEncoding, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
