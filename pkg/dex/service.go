package dex

import (
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexledger/core/pkg/asset"
	"github.com/dexledger/core/pkg/kvstore"
	"github.com/dexledger/core/pkg/service"
)

// AssetFacade is the narrow capability interface the DEX holds as an
// owned collaborator: injecting this at construction avoids modeling
// the asset↔dex relationship as dynamic dispatch through a service
// registry. Any implementation that honors the capability-token
// contract (asset.Service does) satisfies it. GetBalance lets the
// matcher validate a settlement's preconditions up front, before
// issuing any of the mutating calls, so a settlement never leaves
// partially-updated balances behind.
type AssetFacade interface {
	GetBalance(user common.Address, assetID common.Hash) (asset.Balance, error)
	Lock(ctx service.Context, user common.Address, assetID common.Hash, value uint64) error
	Unlock(ctx service.Context, user common.Address, assetID common.Hash, value uint64) error
	AddValue(ctx service.Context, user common.Address, assetID common.Hash, value uint64) error
	SubValue(ctx service.Context, user common.Address, assetID common.Hash, value uint64) error
}

// Service is the DEX: trade-pair admission, order placement and escrow,
// and (via RunMatchingHook) the post-block matcher. Guarded by a mutex
// since reads (get_order, get_trades) may be served by the API
// concurrently with block execution even though execution itself is
// single-threaded.
type Service struct {
	mu             sync.RWMutex
	trades         *kvstore.Map[common.Hash, Trade]
	buyOrders      *kvstore.Map[common.Hash, Order]
	sellOrders     *kvstore.Map[common.Hash, Order]
	historyOrders  *kvstore.Map[common.Hash, Order]
	validity       *kvstore.Uint64Scalar
	asset          AssetFacade
}

// NewService allocates or recovers the DEX's persistent collections and
// wires in the asset facade collaborator.
func NewService(store *kvstore.Store, asset AssetFacade) *Service {
	return &Service{
		trades:        kvstore.AllocOrRecoverMap(store, "dex:trades", tradeKey, tradeCodec()),
		buyOrders:     kvstore.AllocOrRecoverMap(store, "dex:buy_orders", orderKey, orderCodec()),
		sellOrders:    kvstore.AllocOrRecoverMap(store, "dex:sell_orders", orderKey, orderCodec()),
		historyOrders: kvstore.AllocOrRecoverMap(store, "dex:history_orders", orderKey, orderCodec()),
		validity:      kvstore.AllocOrRecoverUint64(store, "dex:validity"),
		asset:         asset,
	}
}

// InitGenesis sets the order-validity window from the genesis payload.
func (s *Service) InitGenesis(orderValidity uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validity.Set(orderValidity)
}

// AddTrade admits a new trade pair between base and counterParty.
func (s *Service) AddTrade(ctx service.Context, baseAsset, counterParty common.Hash) (Trade, error) {
	if baseAsset == counterParty {
		return Trade{}, service.NewError(service.CodeDexIllegalTrade, "base_asset and counter_party must differ")
	}
	id := deriveTradeID(baseAsset, counterParty)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.trades.Get(id); err != nil {
		return Trade{}, service.NewError(service.CodeInternal, "trade lookup: %v", err)
	} else if ok {
		return Trade{}, service.NewError(service.CodeDexTradeExisted, "trade %s already exists", id.Hex())
	}
	t := Trade{ID: id, BaseAsset: baseAsset, CounterParty: counterParty}
	if err := s.trades.Set(id, t); err != nil {
		return Trade{}, service.NewError(service.CodeInternal, "trade persist: %v", err)
	}
	ctx.Emit("AddTrade", t)
	return t, nil
}

// GetTrades materializes every admitted trade. Iteration order is not
// consensus-relevant; callers must not rely on it.
func (s *Service) GetTrades() ([]Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Trade
	err := s.trades.Iter(func(t Trade) error {
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, service.NewError(service.CodeInternal, "trades iteration: %v", err)
	}
	return out, nil
}

// OrderPayload is the wire payload for order().
type OrderPayload struct {
	TradeID common.Hash `json:"trade_id"`
	Kind    OrderKind   `json:"kind"`
	Price   uint64      `json:"price"`
	Amount  uint64      `json:"amount"`
	Expiry  uint64      `json:"expiry"`
}

// checkedMul multiplies a and b, reporting overflow rather than
// wrapping.
func checkedMul(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	v := a * b
	if v/a != b {
		return 0, false
	}
	return v, true
}

// Order places a new Buy or Sell limit order on behalf of ctx.Caller,
// escrowing the appropriate asset via the asset facade.
func (s *Service) Order(ctx service.Context, payload OrderPayload) (Order, error) {
	if ctx.TxHash == nil {
		panic("dex: order submitted outside a transaction")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trade, ok, err := s.trades.Get(payload.TradeID)
	if err != nil {
		return Order{}, service.NewError(service.CodeInternal, "trade lookup: %v", err)
	}
	if !ok {
		return Order{}, service.NewError(service.CodeDexTradeNotExisted, "trade %s does not exist", payload.TradeID.Hex())
	}

	validity, err := s.validity.Get()
	if err != nil {
		return Order{}, service.NewError(service.CodeInternal, "validity lookup: %v", err)
	}
	maxExpiry, ok := checkedAdd(ctx.Height, validity)
	if !ok {
		return Order{}, service.NewError(service.CodeAssetU64Overflow, "height + validity overflows")
	}
	if payload.Expiry > maxExpiry {
		return Order{}, service.NewError(service.CodeDexOrderOverdue, "expiry %d exceeds max %d", payload.Expiry, maxExpiry)
	}

	o := Order{
		TradeID: payload.TradeID,
		TxHash:  *ctx.TxHash,
		Kind:    payload.Kind,
		Price:   payload.Price,
		Amount:  payload.Amount,
		Height:  ctx.Height,
		User:    ctx.Caller,
		Expiry:  payload.Expiry,
		Status:  FreshStatus(),
	}

	privCtx := service.WithCapability(ctx.Height, service.AdmissionToken, ctx.Sink)

	switch payload.Kind {
	case Buy:
		escrow, ok := checkedMul(payload.Amount, payload.Price)
		if !ok {
			return Order{}, service.NewError(service.CodeAssetU64Overflow, "amount * price overflows")
		}
		if err := s.asset.Lock(privCtx, ctx.Caller, trade.BaseAsset, escrow); err != nil {
			return Order{}, err
		}
		if err := s.buyOrders.Set(o.TxHash, o); err != nil {
			return Order{}, service.NewError(service.CodeInternal, "order persist: %v", err)
		}
	case Sell:
		if err := s.asset.Lock(privCtx, ctx.Caller, trade.CounterParty, payload.Amount); err != nil {
			return Order{}, err
		}
		if err := s.sellOrders.Set(o.TxHash, o); err != nil {
			return Order{}, service.NewError(service.CodeInternal, "order persist: %v", err)
		}
	default:
		return Order{}, service.NewError(service.CodeDexJSONParse, "unknown order kind %d", payload.Kind)
	}

	ctx.Emit("Order", o)
	return o, nil
}

// checkedAdd adds a and b, reporting overflow rather than wrapping.
func checkedAdd(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// DealStatus is the observable lifecycle bucket get_order reports
// alongside an order: Dealing while it still rests in buy_orders or
// sell_orders, Dealt once it has moved to history_orders.
type DealStatus string

const (
	Dealing DealStatus = "Dealing"
	Dealt   DealStatus = "Dealt"
)

// OrderView is the get_order response shape: the order plus the
// deal_status bucket derived from which collection it was found in.
type OrderView struct {
	Order
	DealStatus DealStatus `json:"deal_status"`
}

// GetOrder searches buy_orders, then sell_orders, then history_orders
// for txHash.
func (s *Service) GetOrder(txHash common.Hash) (OrderView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok, err := s.buyOrders.Get(txHash); err != nil {
		return OrderView{}, service.NewError(service.CodeInternal, "order lookup: %v", err)
	} else if ok {
		return OrderView{Order: o, DealStatus: Dealing}, nil
	}
	if o, ok, err := s.sellOrders.Get(txHash); err != nil {
		return OrderView{}, service.NewError(service.CodeInternal, "order lookup: %v", err)
	} else if ok {
		return OrderView{Order: o, DealStatus: Dealing}, nil
	}
	if o, ok, err := s.historyOrders.Get(txHash); err != nil {
		return OrderView{}, service.NewError(service.CodeInternal, "order lookup: %v", err)
	} else if ok {
		return OrderView{Order: o, DealStatus: Dealt}, nil
	}
	return OrderView{}, service.NewError(service.CodeDexOrderNotExisted, "order %s does not exist", txHash.Hex())
}
