package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain is the domain separator for EIP-712 typed data, preventing
// a signed order from one deployment being replayed against another.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// OrderEIP712 is the typed-data shape a wallet signs to authorize placing
// a limit order: the trade pair, kind, price/amount, expiry height, and
// owner — the fields dex.OrderPayload carries plus the signer's claimed
// identity, so a recovered signature can stand in for ctx.Caller ahead of
// the executor ever touching pkg/dex.
type OrderEIP712 struct {
	TradeID common.Hash
	Kind    uint8
	Price   *big.Int
	Amount  *big.Int
	Expiry  *big.Int
	Nonce   *big.Int
	Owner   common.Address
}

// EIP712Signer hashes and signs OrderEIP712 values under a fixed domain.
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the default EIP-712 domain for the ledger.
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "DexLedger",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

// HashOrder hashes an order according to EIP-712 and returns the digest
// that should be signed.
func (e *EIP712Signer) HashOrder(order *OrderEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": []apitypes.Type{
				{Name: "tradeId", Type: "bytes32"},
				{Name: "kind", Type: "uint8"},
				{Name: "price", Type: "uint256"},
				{Name: "amount", Type: "uint256"},
				{Name: "expiry", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "owner", Type: "address"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"tradeId": order.TradeID.Hex(),
			"kind":    fmt.Sprintf("%d", order.Kind),
			"price":   order.Price.String(),
			"amount":  order.Amount.String(),
			"expiry":  order.Expiry.String(),
			"nonce":   order.Nonce.String(),
			"owner":   order.Owner.Hex(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	digest := crypto.Keccak256Hash(rawData)
	return digest.Bytes(), nil
}

// SignOrder signs an order with signer and returns the signature.
func (e *EIP712Signer) SignOrder(signer *Signer, order *OrderEIP712) ([]byte, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}
	return signer.Sign(hash)
}

// VerifyOrderSignature reports whether signature was produced by
// order.Owner over order.
func (e *EIP712Signer) VerifyOrderSignature(order *OrderEIP712, signature []byte) (bool, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return false, fmt.Errorf("failed to hash order: %w", err)
	}
	recoveredAddr, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}
	return recoveredAddr == order.Owner, nil
}

// RecoverOrderSigner recovers the address that signed order, useful when
// the executor needs to set ctx.Caller from a signature rather than a
// pre-declared field.
func (e *EIP712Signer) RecoverOrderSigner(order *OrderEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash order: %w", err)
	}
	return RecoverAddress(hash, signature)
}

// OrderToJSON renders order in the eth_signTypedData_v4 shape wallets
// expect for display and signing.
func (e *EIP712Signer) OrderToJSON(order *OrderEIP712) (string, error) {
	typedData := map[string]interface{}{
		"types": map[string]interface{}{
			"EIP712Domain": []map[string]string{
				{"name": "name", "type": "string"},
				{"name": "version", "type": "string"},
				{"name": "chainId", "type": "uint256"},
				{"name": "verifyingContract", "type": "address"},
			},
			"Order": []map[string]string{
				{"name": "tradeId", "type": "bytes32"},
				{"name": "kind", "type": "uint8"},
				{"name": "price", "type": "uint256"},
				{"name": "amount", "type": "uint256"},
				{"name": "expiry", "type": "uint256"},
				{"name": "nonce", "type": "uint256"},
				{"name": "owner", "type": "address"},
			},
		},
		"primaryType": "Order",
		"domain": map[string]interface{}{
			"name":              e.domain.Name,
			"version":           e.domain.Version,
			"chainId":           e.domain.ChainID.String(),
			"verifyingContract": e.domain.VerifyingContract.Hex(),
		},
		"message": map[string]interface{}{
			"tradeId": order.TradeID.Hex(),
			"kind":    order.Kind,
			"price":   order.Price.String(),
			"amount":  order.Amount.String(),
			"expiry":  order.Expiry.String(),
			"nonce":   order.Nonce.String(),
			"owner":   order.Owner.Hex(),
		},
	}

	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// KindToUint8 converts a kind string to its wire uint8 encoding.
func KindToUint8(kind string) uint8 {
	switch kind {
	case "buy", "BUY":
		return 1
	case "sell", "SELL":
		return 2
	default:
		return 0
	}
}

// Uint8ToKind converts a wire uint8 encoding back to a kind string.
func Uint8ToKind(kind uint8) string {
	switch kind {
	case 1:
		return "buy"
	case 2:
		return "sell"
	default:
		return "unknown"
	}
}
