package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ExampleSignOrder demonstrates how to sign an order with EIP-712.
func ExampleSignOrder() {
	signer, err := GenerateKey()
	if err != nil {
		panic(err)
	}

	fmt.Printf("Generated address: %s\n", signer.Address().Hex())
	fmt.Printf("Private key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	domain := DefaultDomain()
	eip712Signer := NewEIP712Signer(domain)

	order := &OrderEIP712{
		TradeID: common.HexToHash("0xaabb"),
		Kind:    1, // Buy
		Price:   big.NewInt(50000),
		Amount:  big.NewInt(100),
		Expiry:  big.NewInt(1_000_000),
		Nonce:   big.NewInt(1),
		Owner:   signer.Address(),
	}

	signature, err := eip712Signer.SignOrder(signer, order)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Order signed!\nSignature: 0x%x\n\n", signature)

	valid, err := eip712Signer.VerifyOrderSignature(order, signature)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Signature valid: %v\n", valid)

	recoveredAddr, err := eip712Signer.RecoverOrderSigner(order, signature)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Recovered address: %s\n", recoveredAddr.Hex())
	fmt.Printf("Matches original: %v\n\n", recoveredAddr == signer.Address())

	json, err := eip712Signer.OrderToJSON(order)
	if err != nil {
		panic(err)
	}
	fmt.Printf("EIP-712 JSON for wallet signing:\n%s\n", json)
}

// ExampleVerifyTransaction demonstrates how the API would verify a
// signed order before handing it to the executor.
func ExampleVerifyTransaction() {
	userAddress := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0")
	order := &OrderEIP712{
		TradeID: common.HexToHash("0xccdd"),
		Kind:    2, // Sell
		Price:   big.NewInt(3000),
		Amount:  big.NewInt(50),
		Expiry:  big.NewInt(1_000_000),
		Nonce:   big.NewInt(42),
		Owner:   userAddress,
	}

	signer, _ := GenerateKey()
	eip712Signer := NewEIP712Signer(DefaultDomain())
	signature, _ := eip712Signer.SignOrder(signer, order)

	fmt.Println("API: Verifying order signature...")

	valid, err := eip712Signer.VerifyOrderSignature(order, signature)
	if err != nil {
		fmt.Printf("Verification error: %v\n", err)
		return
	}
	if !valid {
		fmt.Println("REJECTED: Signature does not match claimed owner")
		return
	}

	recoveredAddr, err := eip712Signer.RecoverOrderSigner(order, signature)
	if err != nil {
		fmt.Printf("Recovery error: %v\n", err)
		return
	}
	if recoveredAddr != order.Owner {
		fmt.Printf("REJECTED: Recovered signer %s != claimed owner %s\n", recoveredAddr.Hex(), order.Owner.Hex())
		return
	}

	fmt.Println("Signature valid, order accepted.")
	fmt.Printf("  Signer: %s\n", recoveredAddr.Hex())
	fmt.Printf("  Kind: %s\n", Uint8ToKind(order.Kind))
	fmt.Printf("  Price: %s\n", order.Price.String())
	fmt.Printf("  Amount: %s\n", order.Amount.String())
}

// ExampleReplayProtection demonstrates nonce-based replay protection
// against a replayed signed order.
func ExampleReplayProtection() {
	signer, _ := GenerateKey()
	eip712Signer := NewEIP712Signer(DefaultDomain())

	order1 := &OrderEIP712{
		TradeID: common.HexToHash("0xaabb"),
		Kind:    1,
		Price:   big.NewInt(50000),
		Amount:  big.NewInt(100),
		Expiry:  big.NewInt(1_000_000),
		Nonce:   big.NewInt(1),
		Owner:   signer.Address(),
	}
	sig1, _ := eip712Signer.SignOrder(signer, order1)

	usedNonces := make(map[common.Address]map[uint64]bool)
	usedNonces[signer.Address()] = make(map[uint64]bool)

	fmt.Println("Processing order with nonce 1...")
	if usedNonces[signer.Address()][order1.Nonce.Uint64()] {
		fmt.Println("REJECTED: nonce already used (replay attack)")
	} else {
		valid, _ := eip712Signer.VerifyOrderSignature(order1, sig1)
		if valid {
			fmt.Println("Order accepted")
			usedNonces[signer.Address()][order1.Nonce.Uint64()] = true
		}
	}

	fmt.Println("\nAttacker replays same order...")
	if usedNonces[signer.Address()][order1.Nonce.Uint64()] {
		fmt.Println("REJECTED: nonce already used (replay attack prevented)")
	}

	order2 := &OrderEIP712{
		TradeID: common.HexToHash("0xaabb"),
		Kind:    2,
		Price:   big.NewInt(51000),
		Amount:  big.NewInt(50),
		Expiry:  big.NewInt(1_000_000),
		Nonce:   big.NewInt(2),
		Owner:   signer.Address(),
	}
	sig2, _ := eip712Signer.SignOrder(signer, order2)

	fmt.Println("\nProcessing new order with nonce 2...")
	if usedNonces[signer.Address()][order2.Nonce.Uint64()] {
		fmt.Println("REJECTED: nonce already used")
	} else {
		valid, _ := eip712Signer.VerifyOrderSignature(order2, sig2)
		if valid {
			fmt.Println("Order accepted")
			usedNonces[signer.Address()][order2.Nonce.Uint64()] = true
		}
	}
}
