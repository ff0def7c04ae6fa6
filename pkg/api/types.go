package api

// API response types for REST endpoints and WebSocket messages.

// ==============================
// REST Response Types
// ==============================

// AssetInfo is an asset's static registration record.
type AssetInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Supply uint64 `json:"supply"`
	Issuer string `json:"issuer"`
}

// BalanceInfo is a user's holdings of one asset.
type BalanceInfo struct {
	Asset     string `json:"asset"`
	Current   uint64 `json:"current"`
	Locked    uint64 `json:"locked"`
	Available uint64 `json:"available"`
}

// TradeInfo is an admitted trade pair.
type TradeInfo struct {
	ID           string `json:"id"`
	BaseAsset    string `json:"baseAsset"`
	CounterParty string `json:"counterParty"`
}

// DealInfo is one partial or full fill recorded against an order.
type DealInfo struct {
	Price  uint64 `json:"price"`
	Amount uint64 `json:"amount"`
}

// OrderInfo represents an order (resting or historical).
type OrderInfo struct {
	TxHash     string     `json:"txHash"`
	TradeID    string     `json:"tradeId"`
	Kind       string     `json:"kind"` // "buy" or "sell"
	Price      uint64     `json:"price"`
	Amount     uint64     `json:"amount"`
	Height     uint64     `json:"height"`
	User       string     `json:"user"`
	Expiry     uint64     `json:"expiry"`
	Status     string     `json:"status"` // "Fresh", "Partial", "Full"
	Dealt      uint64     `json:"dealt"`
	DealStatus string     `json:"dealStatus"` // "Dealing" or "Dealt"
	Deals      []DealInfo `json:"deals"`
}

// ChainStatus reports the executor's view of chain progress.
type ChainStatus struct {
	Height      uint64 `json:"height"`
	MempoolSize int    `json:"mempoolSize"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the base structure for all WebSocket messages.
type WSMessage struct {
	Type string      `json:"type"` // "trade", "order", "balance"
	Data interface{} `json:"data"` // Type-specific payload
}

// WSSubscribeRequest is sent by client to subscribe to channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["trades:<tradeId>", "orders:<txHash>"]
}

// BlockUpdate is broadcast once per finalized block, summarizing what
// happened so a client doesn't have to poll REST endpoints.
type BlockUpdate struct {
	Type      string   `json:"type"` // "block"
	Height    uint64   `json:"height"`
	TxCount   int      `json:"txCount"`
	Events    []string `json:"events"` // event topics emitted this block
	Timestamp int64    `json:"timestamp"`
}

// ==============================
// REST Request Types
// ==============================

// SubmitTxRequest is the payload for POST /api/v1/txs: the executor.Tx
// envelope the caller wants appended to the mempool.
type SubmitTxRequest struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Caller  string `json:"caller"`
	Params  any    `json:"params"`
}

// SubmitTxResponse is the response from transaction submission.
type SubmitTxResponse struct {
	Status string `json:"status"` // "queued"
	TxHash string `json:"txHash"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
