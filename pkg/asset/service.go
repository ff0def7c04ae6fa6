package asset

import (
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexledger/core/pkg/kvstore"
	"github.com/dexledger/core/pkg/service"
)

// Service is the fungible-asset ledger: an Asset registry plus a
// current/locked Balance per (user, asset) pair, guarded by a single
// mutex and backed by kvstore.Map for crash-recoverable persistence.
type Service struct {
	mu       sync.RWMutex
	assets   *kvstore.Map[common.Hash, Asset]
	balances *kvstore.Map[balanceKey, Balance]
}

// NewService allocates or recovers the asset ledger's persistent
// collections from store.
func NewService(store *kvstore.Store) *Service {
	return &Service{
		assets: kvstore.AllocOrRecoverMap(store, "asset:assets", assetKey, assetCodec()),
		balances: kvstore.AllocOrRecoverMap(store, "asset:balances", balanceKeyBytes, balanceCodec()),
	}
}

// InitGenesis installs the assets and issuer balances described by
// payloads. Called once, before any transaction, by the executor
// applying the genesis block; ids are taken as given rather than
// derived since there is no creator transaction at genesis.
func (s *Service) InitGenesis(payloads []GenesisPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range payloads {
		if _, ok, err := s.assets.Get(p.ID); err != nil {
			return fmt.Errorf("genesis asset lookup: %w", err)
		} else if ok {
			return fmt.Errorf("genesis asset %s already exists", p.ID.Hex())
		}
		a := Asset{ID: p.ID, Name: p.Name, Symbol: p.Symbol, Supply: p.Supply, Issuer: p.Issuer}
		if err := s.assets.Set(a.ID, a); err != nil {
			return fmt.Errorf("genesis asset persist: %w", err)
		}
		bk := balanceKey{User: p.Issuer, Asset: p.ID}
		if err := s.balances.Set(bk, Balance{Current: p.Supply}); err != nil {
			return fmt.Errorf("genesis balance persist: %w", err)
		}
	}
	return nil
}

// CreateAsset registers a new asset with ctx.Caller as issuer, crediting
// the full supply to the issuer's current balance. The id is derived
// deterministically from the payload and ctx.Caller alone, so two
// distinct submissions of the same payload by the same issuer collide
// on the same id and the second is rejected as AssetExisted.
func (s *Service) CreateAsset(ctx service.Context, payload CreateAssetPayload) (Asset, error) {
	if payload.Supply == 0 {
		return Asset{}, service.NewError(service.CodeAssetJSONParse, "supply must be nonzero")
	}
	id := deriveAssetID(payload, ctx.Caller)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.assets.Get(id); err != nil {
		return Asset{}, service.NewError(service.CodeInternal, "asset lookup: %v", err)
	} else if ok {
		return Asset{}, service.NewError(service.CodeAssetExisted, "asset %s already exists", id.Hex())
	}

	a := Asset{ID: id, Name: payload.Name, Symbol: payload.Symbol, Supply: payload.Supply, Issuer: ctx.Caller}
	if err := s.assets.Set(a.ID, a); err != nil {
		return Asset{}, service.NewError(service.CodeInternal, "asset persist: %v", err)
	}
	bk := balanceKey{User: ctx.Caller, Asset: id}
	if err := s.balances.Set(bk, Balance{Current: payload.Supply}); err != nil {
		return Asset{}, service.NewError(service.CodeInternal, "balance persist: %v", err)
	}

	ctx.Emit("CreateAsset", a)
	return a, nil
}

// GetAsset looks up an asset by id.
func (s *Service) GetAsset(id common.Hash) (Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok, err := s.assets.Get(id)
	if err != nil {
		return Asset{}, service.NewError(service.CodeInternal, "asset lookup: %v", err)
	}
	if !ok {
		return Asset{}, service.NewError(service.CodeAssetNotExist, "asset %s does not exist", id.Hex())
	}
	return a, nil
}

// GetBalance returns user's holdings of asset, or the zero Balance if
// the pair has never been touched.
func (s *Service) GetBalance(user common.Address, asset common.Hash) (Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBalanceLocked(user, asset)
}

func (s *Service) getBalanceLocked(user common.Address, asset common.Hash) (Balance, error) {
	b, _, err := s.balances.Get(balanceKey{User: user, Asset: asset})
	if err != nil {
		return Balance{}, service.NewError(service.CodeInternal, "balance lookup: %v", err)
	}
	return b, nil
}

// Transfer moves value of asset from ctx.Caller's current balance to
// to's current balance. Fails with CodeAssetInsufficientBal if the
// sender's spendable (current, not locked) balance is short.
func (s *Service) Transfer(ctx service.Context, payload TransferPayload) error {
	if payload.Value == 0 {
		return service.NewError(service.CodeAssetJSONParse, "transfer value must be nonzero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.assets.Get(payload.AssetID); err != nil {
		return service.NewError(service.CodeInternal, "asset lookup: %v", err)
	} else if !ok {
		return service.NewError(service.CodeAssetNotExist, "asset %s does not exist", payload.AssetID.Hex())
	}

	fromKey := balanceKey{User: ctx.Caller, Asset: payload.AssetID}
	from, err := s.getBalanceLocked(ctx.Caller, payload.AssetID)
	if err != nil {
		return err
	}
	if from.Current < payload.Value {
		return service.NewError(service.CodeAssetInsufficientBal, "insufficient balance: have %d, need %d", from.Current, payload.Value)
	}
	toKey := balanceKey{User: payload.To, Asset: payload.AssetID}
	to, err := s.getBalanceLocked(payload.To, payload.AssetID)
	if err != nil {
		return err
	}
	if to.Current > math.MaxUint64-payload.Value {
		return service.NewError(service.CodeAssetU64Overflow, "transfer would overflow recipient balance")
	}

	from.Current -= payload.Value
	to.Current += payload.Value
	if err := s.balances.Set(fromKey, from); err != nil {
		return service.NewError(service.CodeInternal, "balance persist: %v", err)
	}
	if err := s.balances.Set(toKey, to); err != nil {
		return service.NewError(service.CodeInternal, "balance persist: %v", err)
	}

	ctx.Emit("TransferAsset", TransferEvent{AssetID: payload.AssetID, From: ctx.Caller, To: payload.To, Value: payload.Value})
	return nil
}

// requireCapability rejects ctx unless it carries AdmissionToken,
// enforcing that Lock/Unlock/AddValue/SubValue are only reachable
// through a collaborator's synthesized ServiceContext, never directly
// from a transaction's caller address.
func requireCapability(ctx service.Context) error {
	if len(ctx.Extra) != len(service.AdmissionToken) {
		return service.NewError(service.CodeAssetPermissionDenial, "missing capability token")
	}
	for i := range service.AdmissionToken {
		if ctx.Extra[i] != service.AdmissionToken[i] {
			return service.NewError(service.CodeAssetPermissionDenial, "invalid capability token")
		}
	}
	return nil
}

// Lock moves value from user's current balance into user's locked
// balance for asset. Privileged: requires AdmissionToken in ctx.Extra.
// Used by pkg/dex to escrow order collateral.
func (s *Service) Lock(ctx service.Context, user common.Address, asset common.Hash, value uint64) error {
	if err := requireCapability(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.assets.Get(asset); err != nil {
		return service.NewError(service.CodeInternal, "asset lookup: %v", err)
	} else if !ok {
		return service.NewError(service.CodeAssetNotExist, "asset %s does not exist", asset.Hex())
	}

	bk := balanceKey{User: user, Asset: asset}
	b, err := s.getBalanceLocked(user, asset)
	if err != nil {
		return err
	}
	if b.Current < value {
		return service.NewError(service.CodeAssetInsufficientBal, "insufficient current balance to lock: have %d, need %d", b.Current, value)
	}
	if b.Locked > math.MaxUint64-value {
		return service.NewError(service.CodeAssetU64Overflow, "lock would overflow locked balance")
	}
	b.Current -= value
	b.Locked += value
	if err := s.balances.Set(bk, b); err != nil {
		return service.NewError(service.CodeInternal, "balance persist: %v", err)
	}
	return nil
}

// Unlock moves value from user's locked balance back into user's
// current balance. Privileged: requires AdmissionToken in ctx.Extra.
func (s *Service) Unlock(ctx service.Context, user common.Address, asset common.Hash, value uint64) error {
	if err := requireCapability(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.assets.Get(asset); err != nil {
		return service.NewError(service.CodeInternal, "asset lookup: %v", err)
	} else if !ok {
		return service.NewError(service.CodeAssetNotExist, "asset %s does not exist", asset.Hex())
	}

	bk := balanceKey{User: user, Asset: asset}
	b, err := s.getBalanceLocked(user, asset)
	if err != nil {
		return err
	}
	if b.Locked < value {
		return service.NewError(service.CodeAssetInsufficientBal, "insufficient locked balance to unlock: have %d, need %d", b.Locked, value)
	}
	if b.Current > math.MaxUint64-value {
		return service.NewError(service.CodeAssetU64Overflow, "unlock would overflow current balance")
	}
	b.Locked -= value
	b.Current += value
	if err := s.balances.Set(bk, b); err != nil {
		return service.NewError(service.CodeInternal, "balance persist: %v", err)
	}
	return nil
}

// AddValue applies a checked addition directly onto user's current
// balance — the settlement-time credit a fill applies to the receiving
// side. Privileged: requires AdmissionToken.
func (s *Service) AddValue(ctx service.Context, user common.Address, asset common.Hash, value uint64) error {
	if err := requireCapability(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bk := balanceKey{User: user, Asset: asset}
	b, err := s.getBalanceLocked(user, asset)
	if err != nil {
		return err
	}
	if b.Current > math.MaxUint64-value {
		return service.NewError(service.CodeAssetU64Overflow, "add_value would overflow current balance")
	}
	b.Current += value
	if err := s.balances.Set(bk, b); err != nil {
		return service.NewError(service.CodeInternal, "balance persist: %v", err)
	}
	return nil
}

// SubValue requires user's current balance to be at least value and
// debits it directly — the settlement-time debit a fill applies to the
// paying side. Privileged: requires AdmissionToken.
func (s *Service) SubValue(ctx service.Context, user common.Address, asset common.Hash, value uint64) error {
	if err := requireCapability(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bk := balanceKey{User: user, Asset: asset}
	b, err := s.getBalanceLocked(user, asset)
	if err != nil {
		return err
	}
	if b.Current < value {
		return service.NewError(service.CodeAssetInsufficientBal, "insufficient balance to sub: have %d, need %d", b.Current, value)
	}
	b.Current -= value
	if err := s.balances.Set(bk, b); err != nil {
		return service.NewError(service.CodeInternal, "balance persist: %v", err)
	}
	return nil
}
