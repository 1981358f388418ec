package shop

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"realmforge/economy"
	"realmforge/internal/auth"
	"realmforge/internal/campaign"
	"realmforge/internal/ledger"
)

// HTTPHandler serves the shop REST surface. Campaign-owner mutations
// go through the authorizer; player trade endpoints only need a
// session; catalog reads are open.
type HTTPHandler struct {
	shops      *Service
	authorizer *auth.Authorizer
	ledger     ledger.Service
}

func NewHTTPHandler(shops *Service, authorizer *auth.Authorizer, ledgerSvc ledger.Service) *HTTPHandler {
	return &HTTPHandler{shops: shops, authorizer: authorizer, ledger: ledgerSvc}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/shops", h.handleList)
	mux.HandleFunc("/api/shops/types", h.handleTypes)
	mux.HandleFunc("/api/shops/detail", h.handleDetail)
	mux.HandleFunc("/api/shops/inventory", h.handleInventory)
	mux.HandleFunc("/api/shops/create", h.handleCreate)
	mux.HandleFunc("/api/shops/update", h.handleUpdate)
	mux.HandleFunc("/api/shops/delete", h.handleDelete)
	mux.HandleFunc("/api/shops/ai-update", h.handleAIUpdate)
	mux.HandleFunc("/api/shops/buy", h.handleBuy)
	mux.HandleFunc("/api/shops/sell", h.handleSell)
	mux.HandleFunc("/api/shops/buyback", h.handleBuyback)
	mux.HandleFunc("/api/shops/transactions", h.handleTransactions)
	mux.HandleFunc("/api/shops/cleanup-buybacks", h.handleCleanup)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	campaignID := r.URL.Query().Get("campaign_id")
	if campaignID == "" {
		auth.WriteError(w, http.StatusBadRequest, "campaign_id required")
		return
	}
	var (
		shops []economy.Shop
		err   error
	)
	if locationID := r.URL.Query().Get("location_id"); locationID != "" {
		shops, err = h.shops.ListByLocation(r.Context(), campaignID, locationID)
	} else {
		shops, err = h.shops.ListByCampaign(r.Context(), campaignID)
	}
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if shops == nil {
		shops = []economy.Shop{}
	}
	auth.WriteJSON(w, http.StatusOK, shops)
}

func (h *HTTPHandler) handleTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, economy.ShopTypes)
}

func (h *HTTPHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	shopID := r.URL.Query().Get("shop_id")
	if shopID == "" {
		auth.WriteError(w, http.StatusBadRequest, "shop_id required")
		return
	}
	details, err := h.shops.Details(r.Context(), shopID, r.URL.Query().Get("player_id"))
	if err != nil {
		if errors.Is(err, economy.ErrShopNotFound) {
			auth.WriteError(w, http.StatusNotFound, "shop not found")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "detail failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, details)
}

func (h *HTTPHandler) handleInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	shopID := r.URL.Query().Get("shop_id")
	if shopID == "" {
		auth.WriteError(w, http.StatusBadRequest, "shop_id required")
		return
	}
	items, err := h.shops.Inventory(r.Context(), shopID, r.URL.Query().Get("category"))
	if err != nil {
		if errors.Is(err, economy.ErrShopNotFound) {
			auth.WriteError(w, http.StatusNotFound, "shop not found")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "inventory failed")
		return
	}
	if items == nil {
		items = []InventoryView{}
	}
	auth.WriteJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req NewShop
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.authorizer.RequireOwner(r, req.CampaignID); err != nil {
		auth.WriteAuthError(w, err)
		return
	}
	shop, err := h.shops.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, campaign.ErrCampaignNotFound) {
			auth.WriteError(w, http.StatusNotFound, "campaign not found")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "create failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, shop)
}

type updateRequest struct {
	ShopID string `json:"shopId"`
	Patch
}

func (h *HTTPHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req updateRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.requireShopOwner(w, r, req.ShopID) {
		return
	}
	shop, err := h.shops.Update(r.Context(), req.ShopID, req.Patch)
	if err != nil {
		if errors.Is(err, economy.ErrShopNotFound) {
			auth.WriteError(w, http.StatusNotFound, "shop not found")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "update failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, shop)
}

type shopIDRequest struct {
	ShopID string `json:"shopId"`
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req shopIDRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.requireShopOwner(w, r, req.ShopID) {
		return
	}
	if err := h.shops.Delete(r.Context(), req.ShopID); err != nil {
		if errors.Is(err, economy.ErrShopNotFound) {
			auth.WriteError(w, http.StatusNotFound, "shop not found")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type aiUpdateRequest struct {
	ShopID string `json:"shopId"`
	AIAction
}

func (h *HTTPHandler) handleAIUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req aiUpdateRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.requireShopOwner(w, r, req.ShopID) {
		return
	}
	result, err := h.shops.AIUpdate(r.Context(), req.ShopID, req.AIAction)
	if err != nil {
		if errors.Is(err, economy.ErrUnknownAction) {
			auth.WriteError(w, http.StatusBadRequest, "unknown shop action")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "ai update failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, result)
}

type tradeRequest struct {
	ShopID    string `json:"shopId"`
	PlayerID  string `json:"playerId"`
	ItemID    string `json:"itemId,omitempty"`
	BuybackID string `json:"buybackId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

func (h *HTTPHandler) handleBuy(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, h.shops.Buy)
}

func (h *HTTPHandler) handleSell(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, h.shops.Sell)
}

type tradeOp func(ctx context.Context, shopID, playerID, itemID string, quantity int) (economy.Result, error)

func (h *HTTPHandler) handleTrade(w http.ResponseWriter, r *http.Request, op tradeOp) {
	req, ok := h.decodeTrade(w, r)
	if !ok {
		return
	}
	result, err := op(r.Context(), req.ShopID, req.PlayerID, req.ItemID, req.Quantity)
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "transaction failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleBuyback(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTrade(w, r)
	if !ok {
		return
	}
	result, err := h.shops.Buyback(r.Context(), req.ShopID, req.PlayerID, req.BuybackID)
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "transaction failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, result)
}

// decodeTrade validates method, session, and body for the player
// trade endpoints.
func (h *HTTPHandler) decodeTrade(w http.ResponseWriter, r *http.Request) (tradeRequest, bool) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return tradeRequest{}, false
	}
	if _, err := h.authorizer.Resolve(r); err != nil {
		auth.WriteAuthError(w, err)
		return tradeRequest{}, false
	}
	var req tradeRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return tradeRequest{}, false
	}
	if req.ShopID == "" || req.PlayerID == "" {
		auth.WriteError(w, http.StatusBadRequest, "shopId and playerId required")
		return tradeRequest{}, false
	}
	return req, true
}

func (h *HTTPHandler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			auth.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	var (
		txs []economy.Transaction
		err error
	)
	if shopID := r.URL.Query().Get("shop_id"); shopID != "" {
		txs, err = h.ledger.ListByShop(r.Context(), shopID, limit)
	} else {
		campaignID := r.URL.Query().Get("campaign_id")
		playerID := r.URL.Query().Get("player_id")
		if campaignID == "" || playerID == "" {
			auth.WriteError(w, http.StatusBadRequest, "shop_id or campaign_id+player_id required")
			return
		}
		txs, err = h.ledger.ListByPlayer(r.Context(), campaignID, playerID, limit)
	}
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "history failed")
		return
	}
	if txs == nil {
		txs = []economy.Transaction{}
	}
	auth.WriteJSON(w, http.StatusOK, txs)
}

type cleanupRequest struct {
	CampaignID string `json:"campaignId"`
}

type cleanupResponse struct {
	CleanedCount int `json:"cleanedCount"`
}

func (h *HTTPHandler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req cleanupRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.authorizer.RequireOwner(r, req.CampaignID); err != nil {
		auth.WriteAuthError(w, err)
		return
	}
	cleaned, err := h.shops.CleanupExpiredBuybacks(r.Context(), req.CampaignID)
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, cleanupResponse{CleanedCount: cleaned})
}

// requireShopOwner loads the shop and checks the caller owns its
// campaign.
func (h *HTTPHandler) requireShopOwner(w http.ResponseWriter, r *http.Request, shopID string) bool {
	if shopID == "" {
		auth.WriteError(w, http.StatusBadRequest, "shopId required")
		return false
	}
	shop, err := h.shops.Get(r.Context(), shopID)
	if err != nil {
		if errors.Is(err, economy.ErrShopNotFound) {
			auth.WriteError(w, http.StatusNotFound, "shop not found")
			return false
		}
		auth.WriteError(w, http.StatusInternalServerError, "lookup failed")
		return false
	}
	if _, err := h.authorizer.RequireOwner(r, shop.CampaignID); err != nil {
		auth.WriteAuthError(w, err)
		return false
	}
	return true
}
