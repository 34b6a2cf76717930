package modules

import (
	"fmt"
	"maps"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/auctionhouse/core"
)

// MergeCondenser decodes both payloads as CBOR maps and overlays the auction output on the derivative
// params, so a module can supply fields (such as a strike price) that the seller could not know at
// creation.
type MergeCondenser struct{}

func (MergeCondenser) Condense(auctionOutput, derivativeParams []byte) ([]byte, error) {
	merged, err := decodeMap(derivativeParams)
	if err != nil {
		return nil, fmt.Errorf("condense derivative params: %w", err)
	}
	output, err := decodeMap(auctionOutput)
	if err != nil {
		return nil, fmt.Errorf("condense auction output: %w", err)
	}
	maps.Copy(merged, output)

	encoded, err := encMode.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("condense: %w", err)
	}
	return encoded, nil
}

func decodeMap(data []byte) (map[string]any, error) {
	m := make(map[string]any)
	if len(data) == 0 {
		return m, nil
	}
	var decoded map[string]any
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidParams, err)
	}
	maps.Copy(m, decoded)
	return m, nil
}
