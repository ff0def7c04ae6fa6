// Package asset implements the fungible-asset ledger: issuance, balances
// split into a spendable current portion and an escrowed locked portion,
// and the privileged lock/unlock/add_value/sub_value facade pkg/dex uses
// to move user funds, generalized from a single-currency margin model to
// multi-asset current/locked balances.
package asset

import "github.com/ethereum/go-ethereum/common"

// Asset is the identity of a fungible token. Id is the
// digest of a canonical serialization of the creation payload
// concatenated with the creator's address hex; once inserted an Asset
// record is immutable.
type Asset struct {
	ID      common.Hash
	Name    string
	Symbol  string
	Supply  uint64
	Issuer  common.Address
}

// Balance is a user's holdings of one asset, split into the spendable
// Current portion and the Locked (escrowed) portion. The zero value is
// the correct default for an unseen (user, asset) pair.
type Balance struct {
	Current uint64
	Locked  uint64
}

// CreateAssetPayload is the wire payload for create_asset.
type CreateAssetPayload struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Supply uint64 `json:"supply"`
}

// GenesisPayload is the wire payload for init_genesis, including the
// asset's id so genesis can assign a deterministic, pre-agreed id rather
// than deriving one (there is no "creator transaction" at genesis).
type GenesisPayload struct {
	ID     common.Hash    `json:"id"`
	Name   string         `json:"name"`
	Symbol string         `json:"symbol"`
	Supply uint64         `json:"supply"`
	Issuer common.Address `json:"issuer"`
}

// TransferPayload is the wire payload for transfer.
type TransferPayload struct {
	AssetID common.Hash    `json:"asset_id"`
	To      common.Address `json:"to"`
	Value   uint64         `json:"value"`
}

// TransferEvent is the body of the TransferAsset event topic.
type TransferEvent struct {
	AssetID common.Hash    `json:"asset_id"`
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Value   uint64         `json:"value"`
}

// balanceKey identifies a (user, asset) balance slot.
type balanceKey struct {
	User  common.Address
	Asset common.Hash
}
