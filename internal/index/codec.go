package index

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses canonical encoding so equal indexes produce equal bytes.
var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// MarshalCBOR encodes the flattened index.
func (x *TermIndex) MarshalCBOR() ([]byte, error) {
	data, err := encMode.Marshal(x.Flatten())
	if err != nil {
		return nil, fmt.Errorf("failed to encode term index: %w", err)
	}
	return data, nil
}

// UnmarshalCBOR decodes an index written by MarshalCBOR.
func (x *TermIndex) UnmarshalCBOR(data []byte) error {
	var m map[string]int
	if err := cbor.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}
	restored, err := FromMap(m)
	if err != nil {
		return err
	}
	*x = *restored
	return nil
}
