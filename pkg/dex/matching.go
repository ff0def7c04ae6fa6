package dex

import (
	"container/heap"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexledger/core/pkg/service"
)

// dealtForExpiry mirrors OrderStatus.dealt() except it tolerates a Full
// status by treating it as "fully dealt" (a zero refund): a fully
// filled order would already have migrated to history before the sweep
// runs, so this branch only exists to make the sweep total and
// defensive against that not yet having happened.
func dealtForExpiry(o Order) uint64 {
	switch o.Status.Tag {
	case StatusFresh:
		return 0
	case StatusPartial:
		return o.Status.Dealt
	default:
		return o.Amount
	}
}

// RunMatchingHook is the post-block procedure: expiry sweep, priority
// queue rebuild, and the price-time match loop. ctx carries the block
// height and the event sink; it runs exactly once per block, after
// every transaction of that block has executed.
func (s *Service) RunMatchingHook(ctx service.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sweepExpired(ctx, s.buyOrders, Buy); err != nil {
		return err
	}
	if err := s.sweepExpired(ctx, s.sellOrders, Sell); err != nil {
		return err
	}

	buys, err := s.loadOrders(s.buyOrders)
	if err != nil {
		return err
	}
	sells, err := s.loadOrders(s.sellOrders)
	if err != nil {
		return err
	}
	buyQ := newBuyQueue(buys)
	sellQ := newSellQueue(sells)

	return s.matchLoop(ctx, buyQ, sellQ)
}

func (s *Service) loadOrders(m interface {
	Iter(func(Order) error) error
}) ([]*Order, error) {
	var out []*Order
	err := m.Iter(func(o Order) error {
		cp := o
		out = append(out, &cp)
		return nil
	})
	if err != nil {
		return nil, service.NewError(service.CodeInternal, "order load: %v", err)
	}
	return out, nil
}

// sweepExpired removes every order in book with expiry < ctx.Height,
// unlocking its unswept escrow back to the owner and moving it into
// history_orders.
func (s *Service) sweepExpired(ctx service.Context, book interface {
	Iter(func(Order) error) error
	Delete(common.Hash) error
	Set(common.Hash, Order) error
}, kind OrderKind) error {
	var expired []Order
	err := book.Iter(func(o Order) error {
		if o.Expiry < ctx.Height {
			expired = append(expired, o)
		}
		return nil
	})
	if err != nil {
		return service.NewError(service.CodeInternal, "expiry scan: %v", err)
	}

	privCtx := service.WithCapability(ctx.Height, service.AdmissionToken, ctx.Sink)
	for _, o := range expired {
		trade, ok, err := s.trades.Get(o.TradeID)
		if err != nil || !ok {
			ctx.Emit("ExpirySweepFailed", map[string]any{"tx_hash": o.TxHash, "reason": "trade missing"})
			continue
		}

		unlockAmount := o.Amount - dealtForExpiry(o)
		var asset common.Hash
		var unlockValue uint64
		switch kind {
		case Buy:
			asset = trade.BaseAsset
			v, ok := checkedMul(unlockAmount, o.Price)
			if !ok {
				ctx.Emit("ExpirySweepFailed", map[string]any{"tx_hash": o.TxHash, "reason": "overflow"})
				continue
			}
			unlockValue = v
		case Sell:
			asset = trade.CounterParty
			unlockValue = unlockAmount
		}

		if unlockValue > 0 {
			if err := s.asset.Unlock(privCtx, o.User, asset, unlockValue); err != nil {
				ctx.Emit("ExpirySweepFailed", map[string]any{"tx_hash": o.TxHash, "reason": err.Error()})
				continue
			}
		}

		if err := book.Delete(o.TxHash); err != nil {
			return service.NewError(service.CodeInternal, "expiry sweep delete: %v", err)
		}
		if err := s.historyOrders.Set(o.TxHash, o); err != nil {
			return service.NewError(service.CodeInternal, "expiry sweep history persist: %v", err)
		}
	}
	return nil
}

// midPrice computes the deterministic settlement price: integer
// quotient (pb+ps)/2, biased toward the smaller price on an odd sum —
// a consensus-fixed rule, not an economic claim.
func midPrice(pb, ps uint64) uint64 {
	return (pb + ps) / 2
}

func (s *Service) matchLoop(ctx service.Context, buyQ *buyQueue, sellQ *sellQueue) error {
	privCtx := service.WithCapability(ctx.Height, service.AdmissionToken, ctx.Sink)

	for buyQ.Len() > 0 && sellQ.Len() > 0 {
		topBuy := (*buyQ)[0]
		topSell := (*sellQ)[0]

		if topBuy.Price < topSell.Price {
			break
		}

		trade, ok, err := s.trades.Get(topBuy.TradeID)
		if err != nil {
			return service.NewError(service.CodeInternal, "trade lookup: %v", err)
		}
		if !ok {
			heap.Pop(buyQ)
			heap.Pop(sellQ)
			ctx.Emit("SettlementFailed", map[string]any{"reason": "trade missing"})
			continue
		}

		dealPrice := midPrice(topBuy.Price, topSell.Price)
		buyLeft := topBuy.Amount - topBuy.Status.dealt()
		sellLeft := topSell.Amount - topSell.Status.dealt()

		switch {
		case buyLeft < sellLeft:
			if err := s.settleBuyer(privCtx, trade, topBuy, topSell, dealPrice, buyLeft); err != nil {
				heap.Pop(buyQ)
				heap.Pop(sellQ)
				ctx.Emit("SettlementFailed", map[string]any{"buy_tx": topBuy.TxHash, "sell_tx": topSell.TxHash, "reason": err.Error()})
				continue
			}
			heap.Pop(buyQ)
			if err := s.finalizeOrder(*topBuy); err != nil {
				return err
			}
			if err := s.sellOrders.Set(topSell.TxHash, *topSell); err != nil {
				return service.NewError(service.CodeInternal, "order persist: %v", err)
			}
			heap.Fix(sellQ, 0)

		case buyLeft > sellLeft:
			if err := s.settleSeller(privCtx, trade, topBuy, topSell, dealPrice, sellLeft); err != nil {
				heap.Pop(buyQ)
				heap.Pop(sellQ)
				ctx.Emit("SettlementFailed", map[string]any{"buy_tx": topBuy.TxHash, "sell_tx": topSell.TxHash, "reason": err.Error()})
				continue
			}
			heap.Pop(sellQ)
			if err := s.finalizeOrder(*topSell); err != nil {
				return err
			}
			if err := s.buyOrders.Set(topBuy.TxHash, *topBuy); err != nil {
				return service.NewError(service.CodeInternal, "order persist: %v", err)
			}
			heap.Fix(buyQ, 0)

		default:
			if err := s.settleBoth(privCtx, trade, topBuy, topSell, dealPrice, buyLeft); err != nil {
				heap.Pop(buyQ)
				heap.Pop(sellQ)
				ctx.Emit("SettlementFailed", map[string]any{"buy_tx": topBuy.TxHash, "sell_tx": topSell.TxHash, "reason": err.Error()})
				continue
			}
			heap.Pop(buyQ)
			heap.Pop(sellQ)
			if err := s.finalizeOrder(*topBuy); err != nil {
				return err
			}
			if err := s.finalizeOrder(*topSell); err != nil {
				return err
			}
		}
	}
	return nil
}

// finalizeOrder removes a Full order from its resting book and records
// it in history_orders.
func (s *Service) finalizeOrder(o Order) error {
	if o.Kind == Buy {
		if err := s.buyOrders.Delete(o.TxHash); err != nil {
			return service.NewError(service.CodeInternal, "finalize delete: %v", err)
		}
	} else {
		if err := s.sellOrders.Delete(o.TxHash); err != nil {
			return service.NewError(service.CodeInternal, "finalize delete: %v", err)
		}
	}
	if err := s.historyOrders.Set(o.TxHash, o); err != nil {
		return service.NewError(service.CodeInternal, "finalize history persist: %v", err)
	}
	return nil
}

// settleBuyer: buy_left < sell_left. Buyer fills completely (-> Full);
// seller is left with a smaller partial fill. q = buyLeft, p =
// dealPrice, pb = buyer's reserved price.
func (s *Service) settleBuyer(ctx service.Context, trade Trade, buyer, seller *Order, p, q uint64) error {
	pb := buyer.Price
	if err := s.validateSettlement(buyer.User, seller.User, trade, pb, p, q); err != nil {
		return err
	}
	qpb, _ := checkedMul(q, pb)
	qp, _ := checkedMul(q, p)

	if err := s.asset.Unlock(ctx, buyer.User, trade.BaseAsset, qpb); err != nil {
		return err
	}
	if err := s.asset.AddValue(ctx, buyer.User, trade.CounterParty, q); err != nil {
		return err
	}
	if err := s.asset.SubValue(ctx, buyer.User, trade.BaseAsset, qp); err != nil {
		return err
	}
	if err := s.asset.Unlock(ctx, seller.User, trade.CounterParty, q); err != nil {
		return err
	}
	if err := s.asset.AddValue(ctx, seller.User, trade.BaseAsset, qp); err != nil {
		return err
	}
	if err := s.asset.SubValue(ctx, seller.User, trade.CounterParty, q); err != nil {
		return err
	}

	buyer.Deals = append(buyer.Deals, Deal{Price: p, Amount: q})
	buyer.Status = FullStatus()
	seller.Deals = append(seller.Deals, Deal{Price: p, Amount: q})
	seller.Status = PartialStatus(seller.Status.dealt() + q)
	return nil
}

// settleSeller: buy_left > sell_left, the mirror of settleBuyer. Seller
// fills completely; buyer is left partially filled. q = sellLeft.
func (s *Service) settleSeller(ctx service.Context, trade Trade, buyer, seller *Order, p, q uint64) error {
	pb := buyer.Price
	if err := s.validateSettlement(buyer.User, seller.User, trade, pb, p, q); err != nil {
		return err
	}
	qpb, _ := checkedMul(q, pb)
	qp, _ := checkedMul(q, p)

	if err := s.asset.Unlock(ctx, buyer.User, trade.BaseAsset, qpb); err != nil {
		return err
	}
	if err := s.asset.AddValue(ctx, buyer.User, trade.CounterParty, q); err != nil {
		return err
	}
	if err := s.asset.SubValue(ctx, buyer.User, trade.BaseAsset, qp); err != nil {
		return err
	}
	if err := s.asset.Unlock(ctx, seller.User, trade.CounterParty, q); err != nil {
		return err
	}
	if err := s.asset.AddValue(ctx, seller.User, trade.BaseAsset, qp); err != nil {
		return err
	}
	if err := s.asset.SubValue(ctx, seller.User, trade.CounterParty, q); err != nil {
		return err
	}

	seller.Deals = append(seller.Deals, Deal{Price: p, Amount: q})
	seller.Status = FullStatus()
	buyer.Deals = append(buyer.Deals, Deal{Price: p, Amount: q})
	buyer.Status = PartialStatus(buyer.Status.dealt() + q)
	return nil
}

// settleBoth: buy_left == sell_left, both orders fill completely.
func (s *Service) settleBoth(ctx service.Context, trade Trade, buyer, seller *Order, p, q uint64) error {
	pb := buyer.Price
	if err := s.validateSettlement(buyer.User, seller.User, trade, pb, p, q); err != nil {
		return err
	}
	qpb, _ := checkedMul(q, pb)
	qp, _ := checkedMul(q, p)

	if err := s.asset.Unlock(ctx, buyer.User, trade.BaseAsset, qpb); err != nil {
		return err
	}
	if err := s.asset.AddValue(ctx, buyer.User, trade.CounterParty, q); err != nil {
		return err
	}
	if err := s.asset.SubValue(ctx, buyer.User, trade.BaseAsset, qp); err != nil {
		return err
	}
	if err := s.asset.Unlock(ctx, seller.User, trade.CounterParty, q); err != nil {
		return err
	}
	if err := s.asset.AddValue(ctx, seller.User, trade.BaseAsset, qp); err != nil {
		return err
	}
	if err := s.asset.SubValue(ctx, seller.User, trade.CounterParty, q); err != nil {
		return err
	}

	buyer.Deals = append(buyer.Deals, Deal{Price: p, Amount: q})
	buyer.Status = FullStatus()
	seller.Deals = append(seller.Deals, Deal{Price: p, Amount: q})
	seller.Status = FullStatus()
	return nil
}

// validateSettlement checks every facade precondition up front so the
// six-call settlement sequence below it, once started, cannot fail
// partway through and leave a partially-updated balance.
// Given correctly-escrowed orders, pb >= p always holds (dealPrice sits
// between the seller's and buyer's price, clamped by the crossed-book
// guard in the match loop), so the buyer's unlock-then-sub on base and
// the seller's unlock-then-sub on counter can never underflow once the
// unlock succeeds; the remaining risk is the two additions overflowing
// an already enormous balance.
func (s *Service) validateSettlement(buyer, seller common.Address, trade Trade, pb, p, q uint64) error {
	qpb, ok := checkedMul(q, pb)
	if !ok {
		return service.NewError(service.CodeAssetU64Overflow, "q*pb overflows")
	}
	qp, ok := checkedMul(q, p)
	if !ok {
		return service.NewError(service.CodeAssetU64Overflow, "q*p overflows")
	}

	buyerBase, err := s.asset.GetBalance(buyer, trade.BaseAsset)
	if err != nil {
		return service.NewError(service.CodeInternal, "balance lookup: %v", err)
	}
	if buyerBase.Locked < qpb {
		return service.NewError(service.CodeAssetInsufficientBal, "buyer locked base insufficient: have %d need %d", buyerBase.Locked, qpb)
	}
	if buyerBase.Current > math.MaxUint64-qpb {
		return service.NewError(service.CodeAssetU64Overflow, "buyer base unlock would overflow current")
	}

	sellerCounter, err := s.asset.GetBalance(seller, trade.CounterParty)
	if err != nil {
		return service.NewError(service.CodeInternal, "balance lookup: %v", err)
	}
	if sellerCounter.Locked < q {
		return service.NewError(service.CodeAssetInsufficientBal, "seller locked counter insufficient: have %d need %d", sellerCounter.Locked, q)
	}

	buyerCounter, err := s.asset.GetBalance(buyer, trade.CounterParty)
	if err != nil {
		return service.NewError(service.CodeInternal, "balance lookup: %v", err)
	}
	if buyerCounter.Current > math.MaxUint64-q {
		return service.NewError(service.CodeAssetU64Overflow, "buyer counter add would overflow current")
	}

	sellerBase, err := s.asset.GetBalance(seller, trade.BaseAsset)
	if err != nil {
		return service.NewError(service.CodeInternal, "balance lookup: %v", err)
	}
	if sellerBase.Current > math.MaxUint64-qp {
		return service.NewError(service.CodeAssetU64Overflow, "seller base add would overflow current")
	}

	return nil
}
