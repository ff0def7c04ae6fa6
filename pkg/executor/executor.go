// Package executor is the narrow block-application boundary between a
// transaction log and the asset/dex services: apply every transaction in
// a block in order, then run the DEX's post-block matching hook exactly
// once. It deliberately does not reimplement BFT consensus, a mempool, or
// networking — those are external collaborators driven through this
// same request/response shape by cmd/node's block-production loop.
package executor

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dexledger/core/pkg/asset"
	"github.com/dexledger/core/pkg/dex"
	"github.com/dexledger/core/pkg/service"
)

// Tx is the wire shape of a single submitted transaction: which service
// and method to invoke, and the JSON-encoded payload for that method.
// Caller is carried on the transaction itself rather than recovered from
// a signature here: pkg/api's admission handler is what runs
// pkg/crypto's EIP-712 verification, for the "dex"/"order" method only,
// before a transaction is ever admitted to the mempool — by the time the
// executor sees a Tx, Caller has already been overwritten with the
// recovered signer, not trusted verbatim from the request body. Nonce
// and Signature are only meaningful on that path; other methods leave
// them zero.
type Tx struct {
	Service   string          `json:"service"`
	Method    string          `json:"method"`
	Caller    common.Address  `json:"caller"`
	Nonce     uint64          `json:"nonce,omitempty"`
	Signature []byte          `json:"signature,omitempty"`
	Params    json.RawMessage `json:"params"`
}

// Block is a FinalizeBlock-style request: a height, and the raw
// transactions admitted into it.
type Block struct {
	Height uint64
	Txs    [][]byte
}

// Result is what executing a Block produces: one Response per
// transaction, in order, plus every event emitted along the way
// (including by the matching hook, which emits none itself today but may
// in a future service version).
type Result struct {
	Responses []service.Response
	Events    []service.Event
}

// Executor owns the two services a block touches and applies
// transactions against them single-threaded: no concurrent transaction
// execution within a block, so neither service's own mutex is ever
// contended from here.
type Executor struct {
	assetSvc *asset.Service
	dexSvc   *dex.Service
}

func New(assetSvc *asset.Service, dexSvc *dex.Service) *Executor {
	return &Executor{assetSvc: assetSvc, dexSvc: dexSvc}
}

// FinalizeBlock applies every transaction in blk in order and then runs
// the DEX matching hook exactly once, after the last transaction and
// before returning: the hook is a post-block step, never interleaved
// with transaction application.
func (e *Executor) FinalizeBlock(blk Block) Result {
	sink := &service.MemorySink{}
	result := Result{Responses: make([]service.Response, 0, len(blk.Txs))}

	for _, raw := range blk.Txs {
		result.Responses = append(result.Responses, e.applyTx(raw, blk.Height, sink))
	}

	if err := e.dexSvc.RunMatchingHook(service.Context{Height: blk.Height, Sink: sink}); err != nil {
		result.Responses = append(result.Responses, service.Wrap(nil, err))
	}

	result.Events = sink.Events
	return result
}

// applyTx decodes raw and dispatches it to the named service method,
// never panicking on malformed input: a transaction that fails to parse
// or names an unknown service/method is reported through the same
// Response envelope as any other failure, not rejected out-of-band.
func (e *Executor) applyTx(raw []byte, height uint64, sink service.EventSink) service.Response {
	var tx Tx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return service.Response{Code: service.CodeDexJSONParse, ErrorMessage: fmt.Sprintf("decode tx: %v", err)}
	}
	txHash := crypto.Keccak256Hash(raw)
	ctx := service.Context{Caller: tx.Caller, TxHash: &txHash, Height: height, Sink: sink}

	switch tx.Service {
	case "asset":
		return e.applyAssetTx(ctx, tx)
	case "dex":
		return e.applyDexTx(ctx, tx)
	default:
		return service.Response{Code: service.CodeDexJSONParse, ErrorMessage: fmt.Sprintf("unknown service %q", tx.Service)}
	}
}

func (e *Executor) applyAssetTx(ctx service.Context, tx Tx) service.Response {
	switch tx.Method {
	case "create_asset":
		var p asset.CreateAssetPayload
		if err := json.Unmarshal(tx.Params, &p); err != nil {
			return service.Response{Code: service.CodeAssetJSONParse, ErrorMessage: err.Error()}
		}
		v, err := e.assetSvc.CreateAsset(ctx, p)
		return service.Wrap(v, err)
	case "transfer":
		var p asset.TransferPayload
		if err := json.Unmarshal(tx.Params, &p); err != nil {
			return service.Response{Code: service.CodeAssetJSONParse, ErrorMessage: err.Error()}
		}
		err := e.assetSvc.Transfer(ctx, p)
		return service.Wrap(struct{}{}, err)
	default:
		return service.Response{Code: service.CodeAssetJSONParse, ErrorMessage: fmt.Sprintf("unknown asset method %q", tx.Method)}
	}
}

func (e *Executor) applyDexTx(ctx service.Context, tx Tx) service.Response {
	switch tx.Method {
	case "add_trade":
		var p struct {
			BaseAsset    common.Hash `json:"base_asset"`
			CounterParty common.Hash `json:"counter_party"`
		}
		if err := json.Unmarshal(tx.Params, &p); err != nil {
			return service.Response{Code: service.CodeDexJSONParse, ErrorMessage: err.Error()}
		}
		v, err := e.dexSvc.AddTrade(ctx, p.BaseAsset, p.CounterParty)
		return service.Wrap(v, err)
	case "order":
		var p dex.OrderPayload
		if err := json.Unmarshal(tx.Params, &p); err != nil {
			return service.Response{Code: service.CodeDexJSONParse, ErrorMessage: err.Error()}
		}
		v, err := e.dexSvc.Order(ctx, p)
		return service.Wrap(v, err)
	default:
		return service.Response{Code: service.CodeDexJSONParse, ErrorMessage: fmt.Sprintf("unknown dex method %q", tx.Method)}
	}
}
