package asset

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dexledger/core/pkg/kvstore"
)

// rlpAsset is the on-disk shape of Asset: a flat list of 5 fields in
// declared order, RLP-encoded.
type rlpAsset struct {
	ID     common.Hash
	Name   string
	Symbol string
	Supply uint64
	Issuer common.Address
}

func assetCodec() kvstore.Codec[Asset] {
	return kvstore.Codec[Asset]{
		Encode: func(a Asset) ([]byte, error) {
			return rlp.EncodeToBytes(rlpAsset{
				ID: a.ID, Name: a.Name, Symbol: a.Symbol,
				Supply: a.Supply, Issuer: a.Issuer,
			})
		},
		Decode: func(b []byte) (Asset, error) {
			var r rlpAsset
			if err := rlp.DecodeBytes(b, &r); err != nil {
				return Asset{}, err
			}
			return Asset{ID: r.ID, Name: r.Name, Symbol: r.Symbol, Supply: r.Supply, Issuer: r.Issuer}, nil
		},
	}
}

func assetKey(id common.Hash) []byte { return id.Bytes() }

// rlpBalance is the on-disk shape of Balance: a flat 2-field list.
type rlpBalance struct {
	Current uint64
	Locked  uint64
}

func balanceCodec() kvstore.Codec[Balance] {
	return kvstore.Codec[Balance]{
		Encode: func(b Balance) ([]byte, error) {
			return rlp.EncodeToBytes(rlpBalance{Current: b.Current, Locked: b.Locked})
		},
		Decode: func(raw []byte) (Balance, error) {
			var r rlpBalance
			if err := rlp.DecodeBytes(raw, &r); err != nil {
				return Balance{}, err
			}
			return Balance{Current: r.Current, Locked: r.Locked}, nil
		},
	}
}

// balanceKeyBytes packs a (user, asset) pair into a fixed-width key:
// 20-byte address followed by 32-byte asset id.
func balanceKeyBytes(k balanceKey) []byte {
	out := make([]byte, common.AddressLength+common.HashLength)
	copy(out, k.User.Bytes())
	copy(out[common.AddressLength:], k.Asset.Bytes())
	return out
}

// deriveAssetID computes the deterministic id of a newly created asset:
// the Keccak256 digest of the creation payload's RLP encoding
// concatenated with the creator address's hex string. Two creation
// calls carrying the same name/symbol/supply from the same issuer
// always derive the same id, so a resubmission of an identical payload
// is rejected as AssetExisted rather than minting a second asset.
func deriveAssetID(payload CreateAssetPayload, issuer common.Address) common.Hash {
	enc, _ := rlp.EncodeToBytes(struct {
		Name   string
		Symbol string
		Supply uint64
	}{payload.Name, payload.Symbol, payload.Supply})
	data := append(enc, []byte(issuer.Hex())...)
	return crypto.Keccak256Hash(data)
}
