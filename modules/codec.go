package modules

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/auctionhouse/core"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}
}

// EncodeParams encodes module parameters canonically, so equal parameters always produce equal bytes.
func EncodeParams(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	return data, nil
}

// DecodeParams decodes module parameters. Malformed input is a core.ErrInvalidParams.
func DecodeParams(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode params: %v", core.ErrInvalidParams, err)
	}
	return nil
}

// MustEncodeParams is EncodeParams for values known to be encodable, such as literal test fixtures.
func MustEncodeParams(v any) []byte {
	data, err := EncodeParams(v)
	if err != nil {
		panic(err)
	}
	return data
}
