package shop

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"realmforge/economy"
	"realmforge/internal/campaign"
	"realmforge/internal/ledger"
	"realmforge/internal/player"
)

var ErrCounterClosed = errors.New("shop counter closed")

// Deps are the collaborator services a counter drives side effects
// through.
type Deps struct {
	Store     Store
	Players   player.Service
	Campaigns campaign.Service
	Ledger    ledger.Service
}

type reqKind int

const (
	reqBuy reqKind = iota
	reqSell
	reqBuyback
	reqAIAction
	reqRestock
	reqPurge
	reqPatch
	reqClose
)

type request struct {
	kind      reqKind
	ctx       context.Context
	playerID  string
	itemID    string
	buybackID string
	quantity  int
	ai        AIAction
	patch     Patch
	resp      chan reply
}

type reply struct {
	result economy.Result
	shop   economy.Shop
	count  int
	err    error
}

// Counter serializes every mutation of one shop through a single
// goroutine, so concurrent buys can never oversell finite stock and a
// buyback lease can never be redeemed twice.
type Counter struct {
	shopID string
	deps   Deps

	mu          sync.RWMutex
	closed      bool
	lastEventAt time.Time
	stopOnce    sync.Once

	events chan request
	done   chan struct{}
}

func newCounter(shopID string, deps Deps) *Counter {
	c := &Counter{
		shopID:      shopID,
		deps:        deps,
		lastEventAt: time.Now(),
		events:      make(chan request, 64),
		done:        make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Counter) run() {
	for {
		select {
		case req := <-c.events:
			req.resp <- c.handle(req)
		case <-c.done:
			log.Printf("[Counter %s] stopped", c.shopID)
			return
		}
	}
}

func (c *Counter) handle(req request) reply {
	c.mu.Lock()
	c.lastEventAt = time.Now()
	c.mu.Unlock()

	switch req.kind {
	case reqBuy:
		result, err := c.handleBuy(req.ctx, req.playerID, req.itemID, req.quantity)
		return reply{result: result, err: err}
	case reqSell:
		result, err := c.handleSell(req.ctx, req.playerID, req.itemID, req.quantity)
		return reply{result: result, err: err}
	case reqBuyback:
		result, err := c.handleBuyback(req.ctx, req.playerID, req.buybackID)
		return reply{result: result, err: err}
	case reqAIAction:
		result, err := c.handleAIAction(req.ctx, req.ai)
		return reply{result: result, err: err}
	case reqRestock:
		count, err := c.handleRestock(req.ctx)
		return reply{count: count, err: err}
	case reqPurge:
		count, err := c.handlePurge(req.ctx)
		return reply{count: count, err: err}
	case reqPatch:
		shop, err := c.handlePatch(req.ctx, req.patch)
		return reply{shop: shop, err: err}
	case reqClose:
		c.stop()
		return reply{}
	default:
		return reply{err: economy.ErrUnknownAction}
	}
}

func (c *Counter) submit(req request) reply {
	req.resp = make(chan reply, 1)

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return reply{err: ErrCounterClosed}
	}

	select {
	case c.events <- req:
	case <-c.done:
		return reply{err: ErrCounterClosed}
	case <-req.ctx.Done():
		return reply{err: req.ctx.Err()}
	}

	select {
	case r := <-req.resp:
		return r
	case <-c.done:
		return reply{err: ErrCounterClosed}
	}
}

// Buy purchases quantity units of an item for the player.
func (c *Counter) Buy(ctx context.Context, playerID, itemID string, quantity int) (economy.Result, error) {
	r := c.submit(request{kind: reqBuy, ctx: ctx, playerID: playerID, itemID: itemID, quantity: quantity})
	return r.result, r.err
}

// Sell sells quantity units of a carried item to the shop.
func (c *Counter) Sell(ctx context.Context, playerID, itemID string, quantity int) (economy.Result, error) {
	r := c.submit(request{kind: reqSell, ctx: ctx, playerID: playerID, itemID: itemID, quantity: quantity})
	return r.result, r.err
}

// Buyback redeems a buyback lease by its entry id.
func (c *Counter) Buyback(ctx context.Context, playerID, buybackID string) (economy.Result, error) {
	r := c.submit(request{kind: reqBuyback, ctx: ctx, playerID: playerID, buybackID: buybackID})
	return r.result, r.err
}

// AIUpdate applies one AI-driven inventory action.
func (c *Counter) AIUpdate(ctx context.Context, action AIAction) (economy.Result, error) {
	r := c.submit(request{kind: reqAIAction, ctx: ctx, ai: action})
	return r.result, r.err
}

// Restock applies one restock pass and reports entries changed.
func (c *Counter) Restock(ctx context.Context) (int, error) {
	r := c.submit(request{kind: reqRestock, ctx: ctx})
	return r.count, r.err
}

// PurgeBuybacks drops expired buyback entries and reports the count.
func (c *Counter) PurgeBuybacks(ctx context.Context) (int, error) {
	r := c.submit(request{kind: reqPurge, ctx: ctx})
	return r.count, r.err
}

// ApplyPatch applies a partial shop update and returns the result.
func (c *Counter) ApplyPatch(ctx context.Context, patch Patch) (economy.Shop, error) {
	r := c.submit(request{kind: reqPatch, ctx: ctx, patch: patch})
	return r.shop, r.err
}

func (c *Counter) Stop() {
	c.stop()
}

func (c *Counter) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *Counter) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Counter) IsIdleFor(ttl time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}
	return time.Since(c.lastEventAt) >= ttl
}

func (c *Counter) handleBuy(ctx context.Context, playerID, itemID string, quantity int) (economy.Result, error) {
	shop, result, err := c.loadShop(ctx)
	if err != nil || !result.OK {
		return result, err
	}
	if result := economy.CheckAvailability(&shop, itemID, quantity); !result.OK {
		return result, nil
	}
	item, result, err := c.loadItem(ctx, itemID)
	if err != nil || !result.OK {
		return result, err
	}
	state, err := c.deps.Players.EnsureState(ctx, shop.CampaignID, playerID)
	if err != nil {
		return economy.Result{}, err
	}

	nowMs := time.Now().UnixMilli()
	out := economy.Buy(&shop, item, playerID, quantity, state.Gold, nowMs)
	if !out.Result.OK {
		return out.Result, nil
	}

	if _, err := c.deps.Players.AdjustGold(ctx, shop.CampaignID, playerID, out.GoldDelta, false); err != nil {
		return economy.Result{}, err
	}
	if _, err := c.deps.Players.AdjustItem(ctx, shop.CampaignID, playerID, out.ItemID, out.ItemDelta, nowMs); err != nil {
		return economy.Result{}, err
	}
	if err := c.deps.Store.Save(ctx, shop); err != nil {
		return economy.Result{}, err
	}
	if err := c.deps.Ledger.Append(ctx, *out.Transaction); err != nil {
		log.Printf("[Counter %s] ledger append failed: %v", c.shopID, err)
	}
	return out.Result, nil
}

func (c *Counter) handleSell(ctx context.Context, playerID, itemID string, quantity int) (economy.Result, error) {
	shop, result, err := c.loadShop(ctx)
	if err != nil || !result.OK {
		return result, err
	}
	if !shop.IsOpen {
		return economy.Refuse("This shop is closed"), nil
	}
	if _, err := c.deps.Players.EnsureState(ctx, shop.CampaignID, playerID); err != nil {
		return economy.Result{}, err
	}
	owned, err := c.deps.Players.ItemQuantity(ctx, shop.CampaignID, playerID, itemID)
	if err != nil {
		return economy.Result{}, err
	}
	need := quantity
	if need <= 0 {
		need = 1
	}
	if owned < need {
		return economy.Refuse("You don't have enough of that item"), nil
	}
	item, result, err := c.loadItem(ctx, itemID)
	if err != nil || !result.OK {
		return result, err
	}

	nowMs := time.Now().UnixMilli()
	out := economy.Sell(&shop, item, playerID, quantity, owned, nowMs)
	if !out.Result.OK {
		return out.Result, nil
	}

	if _, err := c.deps.Players.AdjustItem(ctx, shop.CampaignID, playerID, out.ItemID, out.ItemDelta, nowMs); err != nil {
		return economy.Result{}, err
	}
	if _, err := c.deps.Players.AdjustGold(ctx, shop.CampaignID, playerID, out.GoldDelta, false); err != nil {
		return economy.Result{}, err
	}
	if err := c.deps.Store.Save(ctx, shop); err != nil {
		return economy.Result{}, err
	}
	if err := c.deps.Ledger.Append(ctx, *out.Transaction); err != nil {
		log.Printf("[Counter %s] ledger append failed: %v", c.shopID, err)
	}
	return out.Result, nil
}

func (c *Counter) handleBuyback(ctx context.Context, playerID, buybackID string) (economy.Result, error) {
	shop, result, err := c.loadShop(ctx)
	if err != nil || !result.OK {
		return result, err
	}
	if !shop.IsOpen {
		return economy.Refuse("This shop is closed"), nil
	}

	var item economy.Item
	if entry, ok := shop.FindBuyback(buybackID); ok {
		item, result, err = c.loadItem(ctx, entry.ItemID)
		if err != nil || !result.OK {
			return result, err
		}
	}
	state, err := c.deps.Players.EnsureState(ctx, shop.CampaignID, playerID)
	if err != nil {
		return economy.Result{}, err
	}

	nowMs := time.Now().UnixMilli()
	out := economy.Buyback(&shop, item, playerID, buybackID, state.Gold, nowMs)
	if !out.Result.OK {
		return out.Result, nil
	}

	if _, err := c.deps.Players.AdjustGold(ctx, shop.CampaignID, playerID, out.GoldDelta, false); err != nil {
		return economy.Result{}, err
	}
	if _, err := c.deps.Players.AdjustItem(ctx, shop.CampaignID, playerID, out.ItemID, out.ItemDelta, nowMs); err != nil {
		return economy.Result{}, err
	}
	if err := c.deps.Store.Save(ctx, shop); err != nil {
		return economy.Result{}, err
	}
	if err := c.deps.Ledger.Append(ctx, *out.Transaction); err != nil {
		log.Printf("[Counter %s] ledger append failed: %v", c.shopID, err)
	}
	return out.Result, nil
}

func (c *Counter) handleRestock(ctx context.Context) (int, error) {
	shop, err := c.deps.Store.Get(ctx, c.shopID)
	if err != nil {
		return 0, err
	}
	changed := shop.Restock()
	if changed == 0 {
		return 0, nil
	}
	if err := c.deps.Store.Save(ctx, shop); err != nil {
		return 0, err
	}
	return changed, nil
}

func (c *Counter) handlePurge(ctx context.Context) (int, error) {
	shop, err := c.deps.Store.Get(ctx, c.shopID)
	if err != nil {
		return 0, err
	}
	nowMs := time.Now().UnixMilli()
	purged := shop.PurgeExpiredBuybacks(nowMs)
	if purged == 0 {
		return 0, nil
	}
	if err := c.deps.Store.Save(ctx, shop); err != nil {
		return 0, err
	}
	return purged, nil
}

func (c *Counter) handlePatch(ctx context.Context, patch Patch) (economy.Shop, error) {
	shop, err := c.deps.Store.Get(ctx, c.shopID)
	if err != nil {
		return economy.Shop{}, err
	}
	patch.apply(&shop)
	if err := c.deps.Store.Save(ctx, shop); err != nil {
		return economy.Shop{}, err
	}
	return shop, nil
}

// loadShop and loadItem translate storage misses into the refusal
// messages players see, while real storage failures stay errors.
func (c *Counter) loadShop(ctx context.Context) (economy.Shop, economy.Result, error) {
	shop, err := c.deps.Store.Get(ctx, c.shopID)
	if errors.Is(err, economy.ErrShopNotFound) {
		return economy.Shop{}, economy.Refuse("Shop not found"), nil
	}
	if err != nil {
		return economy.Shop{}, economy.Result{}, err
	}
	return shop, economy.Result{OK: true}, nil
}

func (c *Counter) loadItem(ctx context.Context, itemID string) (economy.Item, economy.Result, error) {
	item, err := c.deps.Campaigns.GetItem(ctx, itemID)
	if errors.Is(err, campaign.ErrItemNotFound) {
		return economy.Item{}, economy.Refuse("Item not found"), nil
	}
	if err != nil {
		return economy.Item{}, economy.Result{}, err
	}
	return item, economy.Result{OK: true}, nil
}
