package api

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexledger/core/pkg/crypto"
	"github.com/dexledger/core/pkg/dex"
	"github.com/dexledger/core/pkg/executor"
)

func signedOrderTx(t *testing.T, signer *crypto.Signer, nonce uint64, owner common.Address) executor.Tx {
	t.Helper()
	order := &crypto.OrderEIP712{
		TradeID: common.HexToHash("0xaa"),
		Kind:    1,
		Price:   big.NewInt(100),
		Amount:  big.NewInt(10),
		Expiry:  big.NewInt(1000),
		Nonce:   new(big.Int).SetUint64(nonce),
		Owner:   owner,
	}
	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	sig, err := eip712Signer.SignOrder(signer, order)
	if err != nil {
		t.Fatalf("sign order: %v", err)
	}

	params, err := json.Marshal(dex.OrderPayload{
		TradeID: order.TradeID,
		Kind:    dex.OrderKind(order.Kind),
		Price:   order.Price.Uint64(),
		Amount:  order.Amount.Uint64(),
		Expiry:  order.Expiry.Uint64(),
	})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}

	return executor.Tx{
		Service:   "dex",
		Method:    "order",
		Caller:    owner,
		Nonce:     nonce,
		Signature: sig,
		Params:    params,
	}
}

func TestVerifyOrderSignatureAccepted(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := signedOrderTx(t, signer, 1, signer.Address())

	caller, err := verifyOrderSignature(tx)
	if err != nil {
		t.Fatalf("verifyOrderSignature: %v", err)
	}
	if caller != signer.Address() {
		t.Fatalf("recovered caller = %s, want %s", caller.Hex(), signer.Address().Hex())
	}
}

func TestVerifyOrderSignatureRejectsMissingSignature(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := signedOrderTx(t, signer, 1, signer.Address())
	tx.Signature = nil

	if _, err := verifyOrderSignature(tx); err == nil {
		t.Fatalf("expected error for missing signature")
	}
}

func TestVerifyOrderSignatureRejectsSpoofedCaller(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	impersonated, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tx := signedOrderTx(t, signer, 1, signer.Address())
	tx.Caller = impersonated.Address()

	if _, err := verifyOrderSignature(tx); err == nil {
		t.Fatalf("expected error for caller not matching the recovered signer")
	}
}

func TestVerifyOrderSignatureRejectsTamperedPayload(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := signedOrderTx(t, signer, 1, signer.Address())

	var p dex.OrderPayload
	if err := json.Unmarshal(tx.Params, &p); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	p.Amount = p.Amount * 100
	tampered, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal tampered params: %v", err)
	}
	tx.Params = tampered

	if _, err := verifyOrderSignature(tx); err == nil {
		t.Fatalf("expected error for tampered order payload")
	}
}
