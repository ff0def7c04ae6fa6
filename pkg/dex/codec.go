package dex

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dexledger/core/pkg/kvstore"
)

// rlpTrade is Trade's on-disk shape: list of [id, base_asset,
// counter_party]
type rlpTrade struct {
	ID           common.Hash
	BaseAsset    common.Hash
	CounterParty common.Hash
}

func tradeCodec() kvstore.Codec[Trade] {
	return kvstore.Codec[Trade]{
		Encode: func(t Trade) ([]byte, error) {
			return rlp.EncodeToBytes(rlpTrade{ID: t.ID, BaseAsset: t.BaseAsset, CounterParty: t.CounterParty})
		},
		Decode: func(b []byte) (Trade, error) {
			var r rlpTrade
			if err := rlp.DecodeBytes(b, &r); err != nil {
				return Trade{}, err
			}
			return Trade{ID: r.ID, BaseAsset: r.BaseAsset, CounterParty: r.CounterParty}, nil
		},
	}
}

func tradeKey(id common.Hash) []byte { return id.Bytes() }

// rlpDeal is Deal's on-disk shape: list of [price, amount].
type rlpDeal struct {
	Price  uint64
	Amount uint64
}

// rlpOrder is Order's on-disk shape: the 11-slot layout —
// trade_id, tx_hash, kind_tag, price, amount, height, user, expiry,
// status_tag, status_payload, deals.
type rlpOrder struct {
	TradeID       common.Hash
	TxHash        common.Hash
	KindTag       uint8
	Price         uint64
	Amount        uint64
	Height        uint64
	User          common.Address
	Expiry        uint64
	StatusTag     uint8
	StatusPayload uint64
	Deals         []rlpDeal
}

func orderCodec() kvstore.Codec[Order] {
	return kvstore.Codec[Order]{
		Encode: func(o Order) ([]byte, error) {
			deals := make([]rlpDeal, len(o.Deals))
			for i, d := range o.Deals {
				deals[i] = rlpDeal{Price: d.Price, Amount: d.Amount}
			}
			statusPayload := uint64(0)
			if o.Status.Tag == StatusPartial {
				statusPayload = o.Status.Dealt
			}
			return rlp.EncodeToBytes(rlpOrder{
				TradeID: o.TradeID, TxHash: o.TxHash, KindTag: uint8(o.Kind),
				Price: o.Price, Amount: o.Amount, Height: o.Height,
				User: o.User, Expiry: o.Expiry,
				StatusTag: uint8(o.Status.Tag), StatusPayload: statusPayload,
				Deals: deals,
			})
		},
		Decode: func(b []byte) (Order, error) {
			var r rlpOrder
			if err := rlp.DecodeBytes(b, &r); err != nil {
				return Order{}, err
			}
			deals := make([]Deal, len(r.Deals))
			for i, d := range r.Deals {
				deals[i] = Deal{Price: d.Price, Amount: d.Amount}
			}
			status := OrderStatus{Tag: StatusTag(r.StatusTag), Dealt: r.StatusPayload}
			return Order{
				TradeID: r.TradeID, TxHash: r.TxHash, Kind: OrderKind(r.KindTag),
				Price: r.Price, Amount: r.Amount, Height: r.Height,
				User: r.User, Expiry: r.Expiry, Status: status, Deals: deals,
			}, nil
		},
	}
}

func orderKey(txHash common.Hash) []byte { return txHash.Bytes() }

// deriveTradeID computes the commutative canonical id of a trade
// between a and b: the Keccak256 digest of the two hex-encoded hashes
// concatenated in byte-sorted order, so add_trade(x, y) and
// add_trade(y, x) produce the same id.
func deriveTradeID(a, b common.Hash) common.Hash {
	lo, hi := a, b
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		lo, hi = b, a
	}
	return crypto.Keccak256Hash([]byte(lo.Hex() + hi.Hex()))
}
