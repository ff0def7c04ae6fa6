// Command sign-order demonstrates producing a signed order transaction
// the way a wallet/CLI client would, for submission to the node's HTTP
// API: generate a keypair, build an OrderEIP712, sign it, recover the
// signer to confirm the signature, and print the executor.Tx envelope
// ready to POST.
package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dexledger/core/pkg/crypto"
	"github.com/dexledger/core/pkg/dex"
	"github.com/dexledger/core/pkg/executor"
)

func main() {
	fmt.Println("Generating new keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	order := &crypto.OrderEIP712{
		TradeID: common.HexToHash("0xaabbccdd"),
		Kind:    1, // Buy
		Price:   big.NewInt(50000),
		Amount:  big.NewInt(100),
		Expiry:  big.NewInt(1_000_000),
		Nonce:   big.NewInt(1),
		Owner:   signer.Address(),
	}

	fmt.Println("Order Details:")
	fmt.Printf("  TradeID: %s\n", order.TradeID.Hex())
	fmt.Printf("  Kind: %s\n", crypto.Uint8ToKind(order.Kind))
	fmt.Printf("  Price: %s\n", order.Price.String())
	fmt.Printf("  Amount: %s\n", order.Amount.String())
	fmt.Printf("  Owner: %s\n\n", order.Owner.Hex())

	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	signature, err := eip712Signer.SignOrder(signer, order)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature: 0x%x\n\n", signature)

	fmt.Println("Verifying signature...")
	recoveredOwner, err := eip712Signer.RecoverOrderSigner(order, signature)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}
	if recoveredOwner != order.Owner {
		fmt.Println("Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("Signature VALID")
	fmt.Printf("  Signer: %s\n\n", recoveredOwner.Hex())

	params, err := json.Marshal(dex.OrderPayload{
		TradeID: order.TradeID,
		Kind:    dex.OrderKind(order.Kind),
		Price:   order.Price.Uint64(),
		Amount:  order.Amount.Uint64(),
		Expiry:  order.Expiry.Uint64(),
	})
	if err != nil {
		fmt.Printf("Error marshaling order params: %v\n", err)
		os.Exit(1)
	}
	tx := executor.Tx{
		Service:   "dex",
		Method:    "order",
		Caller:    order.Owner,
		Nonce:     order.Nonce.Uint64(),
		Signature: signature,
		Params:    params,
	}

	txJSON, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling tx: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Transaction to submit (JSON):")
	fmt.Println(string(txJSON))
	fmt.Println()
	fmt.Println("To submit this order:")
	fmt.Println("  POST http://localhost:8080/api/v1/txs")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body: the transaction JSON above")
}
