package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/dexledger/core/pkg/asset"
	"github.com/dexledger/core/pkg/crypto"
	"github.com/dexledger/core/pkg/dex"
	"github.com/dexledger/core/pkg/executor"
	"github.com/dexledger/core/pkg/mempool"
)

// Server handles REST API and WebSocket connections for the ledger
// node: reads go straight to asset.Service/dex.Service, writes are
// appended to the mempool for the next block rather than applied
// synchronously.
type Server struct {
	assetSvc *asset.Service
	dexSvc   *dex.Service
	mp       *mempool.Mempool
	height   func() uint64

	router *mux.Router
	hub    *Hub
	txLog  *os.File
}

// NewServer creates a new API server. height is called on demand to
// report the executor's current block height; the node supplies it
// rather than the server owning any chain state itself.
func NewServer(assetSvc *asset.Service, dexSvc *dex.Service, mp *mempool.Mempool, height func() uint64) *Server {
	txLogPath := os.Getenv("TX_LOG_FILE")
	if txLogPath == "" {
		txLogPath = "data/transactions.log"
	}
	os.MkdirAll("data", 0755)

	txLog, err := os.OpenFile(txLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[api] WARNING: failed to open tx log file %s: %v", txLogPath, err)
		txLog = nil
	} else {
		log.Printf("[api] transaction log: %s", txLogPath)
	}

	s := &Server{
		assetSvc: assetSvc,
		dexSvc:   dexSvc,
		mp:       mp,
		height:   height,
		router:   mux.NewRouter(),
		hub:      NewHub(),
		txLog:    txLog,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/assets/{id}", s.handleGetAsset).Methods("GET")
	api.HandleFunc("/assets/{id}/balances/{address}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/orders/{txHash}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")
	api.HandleFunc("/txs", s.handleSubmitTx).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := parseHash(vars["id"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid asset id", "")
		return
	}

	a, err := s.assetSvc.GetAsset(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "asset not found", err.Error())
		return
	}

	respondJSON(w, AssetInfo{
		ID:     a.ID.Hex(),
		Name:   a.Name,
		Symbol: a.Symbol,
		Supply: a.Supply,
		Issuer: a.Issuer.Hex(),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assetID, ok := parseHash(vars["id"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid asset id", "")
		return
	}
	if !common.IsHexAddress(vars["address"]) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	user := common.HexToAddress(vars["address"])

	b, err := s.assetSvc.GetBalance(user, assetID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "balance lookup failed", err.Error())
		return
	}

	respondJSON(w, BalanceInfo{
		Asset:     assetID.Hex(),
		Current:   b.Current,
		Locked:    b.Locked,
		Available: b.Current,
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.dexSvc.GetTrades()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "trades lookup failed", err.Error())
		return
	}

	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = TradeInfo{ID: t.ID.Hex(), BaseAsset: t.BaseAsset.Hex(), CounterParty: t.CounterParty.Hex()}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	txHash, ok := parseHash(vars["txHash"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tx hash", "")
		return
	}

	view, err := s.dexSvc.GetOrder(txHash)
	if err != nil {
		respondError(w, http.StatusNotFound, "order not found", err.Error())
		return
	}

	respondJSON(w, orderInfoFromView(view))
}

func orderInfoFromView(view dex.OrderView) OrderInfo {
	kind := "buy"
	if view.Kind == dex.Sell {
		kind = "sell"
	}
	status := "Fresh"
	dealt := uint64(0)
	switch view.Status.Tag {
	case dex.StatusPartial:
		status = "Partial"
		dealt = view.Status.Dealt
	case dex.StatusFull:
		status = "Full"
		dealt = view.Amount
	}
	deals := make([]DealInfo, len(view.Deals))
	for i, d := range view.Deals {
		deals[i] = DealInfo{Price: d.Price, Amount: d.Amount}
	}
	return OrderInfo{
		TxHash:     view.TxHash.Hex(),
		TradeID:    view.TradeID.Hex(),
		Kind:       kind,
		Price:      view.Price,
		Amount:     view.Amount,
		Height:     view.Height,
		User:       view.User.Hex(),
		Expiry:     view.Expiry,
		Status:     status,
		Dealt:      dealt,
		DealStatus: string(view.DealStatus),
		Deals:      deals,
	}
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, ChainStatus{
		Height:      s.height(),
		MempoolSize: s.mp.Len(),
	})
}

// handleSubmitTx admits a transaction to the mempool. A "dex"/"order"
// transaction must carry a valid EIP-712 signature over its order
// payload: the declared Caller is only accepted once the signature
// recovers to that same address, so the executor never trusts an
// unauthenticated Caller field for order placement.
func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	var tx executor.Tx
	if err := json.Unmarshal(bodyBytes, &tx); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON transaction", err.Error())
		return
	}
	if tx.Service == "" || tx.Method == "" {
		respondError(w, http.StatusBadRequest, "missing service or method", "")
		return
	}

	if tx.Service == "dex" && tx.Method == "order" {
		caller, err := verifyOrderSignature(tx)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "order signature verification failed", err.Error())
			return
		}
		tx.Caller = caller
	}

	raw, err := json.Marshal(tx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode transaction", err.Error())
		return
	}

	s.mp.PushRaw(raw)

	txHash := randomTxHash()
	log.Printf("[api] tx queued: service=%s method=%s bytes=%d", tx.Service, tx.Method, len(raw))

	s.logTransaction("TX_SUBMIT", map[string]interface{}{
		"service":  tx.Service,
		"method":   tx.Method,
		"tx_bytes": len(raw),
	})

	respondJSON(w, SubmitTxResponse{Status: "queued", TxHash: txHash})
}

// verifyOrderSignature recovers the signer of tx's EIP-712 order
// payload and confirms it matches tx's declared Caller, returning that
// verified address.
func verifyOrderSignature(tx executor.Tx) (common.Address, error) {
	var p dex.OrderPayload
	if err := json.Unmarshal(tx.Params, &p); err != nil {
		return common.Address{}, fmt.Errorf("decode order params: %w", err)
	}
	if len(tx.Signature) == 0 {
		return common.Address{}, fmt.Errorf("missing signature")
	}

	order := &crypto.OrderEIP712{
		TradeID: p.TradeID,
		Kind:    uint8(p.Kind),
		Price:   new(big.Int).SetUint64(p.Price),
		Amount:  new(big.Int).SetUint64(p.Amount),
		Expiry:  new(big.Int).SetUint64(p.Expiry),
		Nonce:   new(big.Int).SetUint64(tx.Nonce),
		Owner:   tx.Caller,
	}

	signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	recovered, err := signer.RecoverOrderSigner(order, tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	if recovered != tx.Caller {
		return common.Address{}, fmt.Errorf("recovered signer %s does not match declared caller %s", recovered.Hex(), tx.Caller.Hex())
	}
	return recovered, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from the block production loop)
// ==============================

// BroadcastBlock notifies WebSocket subscribers of the "blocks" channel
// that a block finalized, summarizing its transaction count and the
// event topics it emitted.
func (s *Server) BroadcastBlock(height uint64, txCount int, eventTopics []string) {
	update := BlockUpdate{
		Type:      "block",
		Height:    height,
		TxCount:   txCount,
		Events:    eventTopics,
		Timestamp: time.Now().UnixMilli(),
	}
	s.hub.BroadcastToChannel("blocks", update)
}

// ==============================
// Helper Functions
// ==============================

func parseHash(s string) (common.Hash, bool) {
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) != 64 {
		return common.Hash{}, false
	}
	if _, err := hex.DecodeString(trimmed); err != nil {
		return common.Hash{}, false
	}
	return common.HexToHash(s), true
}

func randomTxHash() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "0x"
	}
	return "0x" + hex.EncodeToString(b)
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// logTransaction writes a transaction event to the log file.
func (s *Server) logTransaction(eventType string, data map[string]interface{}) {
	if s.txLog == nil {
		return
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"event":     eventType,
		"data":      data,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[api] failed to marshal tx log entry: %v", err)
		return
	}

	s.txLog.Write(jsonData)
	s.txLog.Write([]byte("\n"))
}
