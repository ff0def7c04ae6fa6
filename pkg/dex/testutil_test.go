package dex

import (
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	dexasset "github.com/dexledger/core/pkg/asset"
	"github.com/dexledger/core/pkg/kvstore"
	"github.com/dexledger/core/pkg/service"
)

// testRig bundles a real asset.Service with a dex.Service under test,
// mirroring how cmd/node wires the two in production: the DEX holds the
// asset service through the AssetFacade interface, never the concrete
// type.
type testRig struct {
	store *kvstore.Store
	asset *dexasset.Service
	dex   *Service
}

func newTestRig(t *testing.T) *testRig {
	dbPath := "./tmp_test_dex_" + t.Name() + ".db"
	os.RemoveAll(dbPath)
	t.Cleanup(func() { os.RemoveAll(dbPath) })

	store, err := kvstore.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	a := dexasset.NewService(store)
	d := NewService(store, a)
	if err := d.InitGenesis(1000); err != nil {
		t.Fatalf("dex init genesis: %v", err)
	}
	return &testRig{store: store, asset: a, dex: d}
}

func addr(b byte) common.Address {
	var a common.Address
	a[len(a)-1] = b
	return a
}

func (r *testRig) createAsset(t *testing.T, issuer common.Address, name, symbol string, supply uint64) common.Hash {
	tx := common.BytesToHash([]byte(name + symbol))
	a, err := r.asset.CreateAsset(service.Context{Caller: issuer, TxHash: &tx, Height: 1}, dexasset.CreateAssetPayload{
		Name: name, Symbol: symbol, Supply: supply,
	})
	if err != nil {
		t.Fatalf("create asset %s: %v", name, err)
	}
	return a.ID
}

func (r *testRig) balance(t *testing.T, user common.Address, assetID common.Hash) dexasset.Balance {
	b, err := r.asset.GetBalance(user, assetID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b
}

func (r *testRig) addTrade(t *testing.T, base, counter common.Hash) Trade {
	tr, err := r.dex.AddTrade(service.Context{Height: 1}, base, counter)
	if err != nil {
		t.Fatalf("add trade: %v", err)
	}
	return tr
}

func (r *testRig) placeOrder(t *testing.T, txSeed byte, height uint64, payload OrderPayload, caller common.Address) Order {
	tx := common.BytesToHash([]byte{txSeed})
	o, err := r.dex.Order(service.Context{Caller: caller, TxHash: &tx, Height: height}, payload)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return o
}
