// Package genesis describes the chain's block-zero state and applies it
// to a freshly opened asset/dex service pair, the way cmd/node wires a
// first-run market and account set before accepting any transaction.
package genesis

import (
	"encoding/json"
	"fmt"

	"github.com/dexledger/core/pkg/asset"
	"github.com/dexledger/core/pkg/dex"
)

// Payload is the full genesis document: the assets to mint and the
// order-validity window the DEX enforces for every order placed
// thereafter.
type Payload struct {
	Assets        []asset.GenesisPayload `json:"assets"`
	OrderValidity uint64                 `json:"order_validity"`
}

// Decode parses a genesis document from raw JSON, the same wire shape
// cmd/node reads from its --genesis flag.
func Decode(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("genesis: decode: %w", err)
	}
	return p, nil
}

// Apply installs p against assetSvc and dexSvc. Called exactly once,
// before the executor processes any block, and never again: both
// services reject a second InitGenesis call implicitly by rejecting
// duplicate asset ids, but the order-validity scalar has no such guard,
// so the executor is responsible for calling this only at height zero.
func Apply(assetSvc *asset.Service, dexSvc *dex.Service, p Payload) error {
	if err := assetSvc.InitGenesis(p.Assets); err != nil {
		return fmt.Errorf("genesis: asset: %w", err)
	}
	if err := dexSvc.InitGenesis(p.OrderValidity); err != nil {
		return fmt.Errorf("genesis: dex: %w", err)
	}
	return nil
}
