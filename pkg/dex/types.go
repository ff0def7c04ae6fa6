// Package dex implements the on-chain matching engine: trade-pair
// admission, limit-order placement with escrow, and the post-block hook
// that sweeps expired orders and matches the book at a mid-price. The
// order and fill types, and the heap-based price queues, are generalized
// from perpetual-futures ticks to a price/amount GTC-only fungible-asset
// order model.
package dex

import "github.com/ethereum/go-ethereum/common"

// OrderKind distinguishes a buy from a sell limit order.
type OrderKind uint8

const (
	Buy  OrderKind = 1
	Sell OrderKind = 2
)

// StatusTag is the discriminant of OrderStatus's tagged variant.
type StatusTag uint8

const (
	StatusFresh   StatusTag = 0
	StatusPartial StatusTag = 1
	StatusFull    StatusTag = 2
)

// OrderStatus is the order lifecycle state: Fresh (untouched),
// Partial(dealt) (dealt < amount units already settled), or Full
// (terminal). Encoded as a tag plus payload rather than a nullable
// integer so settlement code can exhaustively switch on it.
type OrderStatus struct {
	Tag   StatusTag
	Dealt uint64 // meaningful only when Tag == StatusPartial
}

func FreshStatus() OrderStatus            { return OrderStatus{Tag: StatusFresh} }
func PartialStatus(dealt uint64) OrderStatus { return OrderStatus{Tag: StatusPartial, Dealt: dealt} }
func FullStatus() OrderStatus             { return OrderStatus{Tag: StatusFull} }

// dealt returns the quantity already settled: 0 for Fresh, the payload
// for Partial. Calling it on a Full order is a matching-loop logic bug,
// not a reachable runtime state, so it panics rather than returning a
// placeholder.
func (s OrderStatus) dealt() uint64 {
	switch s.Tag {
	case StatusFresh:
		return 0
	case StatusPartial:
		return s.Dealt
	default:
		panic("dex: dealt() invoked on a Full order status")
	}
}

// Deal is one settled fill recorded against an order; append-only.
type Deal struct {
	Price  uint64
	Amount uint64
}

// Order is a resting or historical limit order. TxHash (the submitting
// transaction's hash) is its primary key.
type Order struct {
	TradeID common.Hash
	TxHash  common.Hash
	Kind    OrderKind
	Price   uint64
	Amount  uint64
	Height  uint64
	User    common.Address
	Expiry  uint64
	Status  OrderStatus
	Deals   []Deal
}

// Trade is an admitted market pair between two assets.
type Trade struct {
	ID           common.Hash
	BaseAsset    common.Hash
	CounterParty common.Hash
}

// buyHigherPriority reports whether a has matching priority over b
// among two Buy orders: higher price wins; a price tie is broken by
// the older (smaller height) order (price-time priority).
func buyHigherPriority(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Height < b.Height
}

// sellHigherPriority is the Sell-side mirror of buyHigherPriority:
// lower price wins, tie broken by the older order.
func sellHigherPriority(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Height < b.Height
}
