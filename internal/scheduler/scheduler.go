// Package scheduler runs the periodic economy maintenance: shop
// restocks, expired buyback sweeps, and idle counter reaping.
package scheduler

import (
	"context"
	"log"
	"time"

	"realmforge/internal/shop"
)

type Config struct {
	RestockInterval        time.Duration
	BuybackCleanupInterval time.Duration
	CounterIdleTTL         time.Duration
}

type Scheduler struct {
	shops *shop.Service
	cfg   Config
	done  chan struct{}
}

func New(shops *shop.Service, cfg Config) *Scheduler {
	return &Scheduler{shops: shops, cfg: cfg, done: make(chan struct{})}
}

// Start launches the maintenance loop. Stop ends it.
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) Stop() {
	close(s.done)
}

func (s *Scheduler) run() {
	restock := time.NewTicker(s.cfg.RestockInterval)
	cleanup := time.NewTicker(s.cfg.BuybackCleanupInterval)
	reap := time.NewTicker(s.cfg.CounterIdleTTL)
	defer restock.Stop()
	defer cleanup.Stop()
	defer reap.Stop()

	log.Printf("[Scheduler] Started (restock=%s, cleanup=%s, idle=%s)",
		s.cfg.RestockInterval, s.cfg.BuybackCleanupInterval, s.cfg.CounterIdleTTL)

	for {
		select {
		case <-restock.C:
			s.RestockAll(context.Background())
		case <-cleanup.C:
			s.CleanupAll(context.Background())
		case <-reap.C:
			s.shops.Counters().ReapIdle(s.cfg.CounterIdleTTL)
		case <-s.done:
			log.Printf("[Scheduler] Stopped")
			return
		}
	}
}

// RestockAll runs one restock pass over every campaign with shops.
func (s *Scheduler) RestockAll(ctx context.Context) {
	campaignIDs, err := s.shops.CampaignIDs(ctx)
	if err != nil {
		log.Printf("[Scheduler] Listing campaigns failed: %v", err)
		return
	}
	for _, id := range campaignIDs {
		restocked, err := s.shops.RestockCampaign(ctx, id)
		if err != nil {
			log.Printf("[Scheduler] Restock for campaign %s failed: %v", id, err)
			continue
		}
		if restocked > 0 {
			log.Printf("[Scheduler] Restocked %d shops in campaign %s", restocked, id)
		}
	}
}

// CleanupAll sweeps expired buyback leases in every campaign.
func (s *Scheduler) CleanupAll(ctx context.Context) {
	campaignIDs, err := s.shops.CampaignIDs(ctx)
	if err != nil {
		log.Printf("[Scheduler] Listing campaigns failed: %v", err)
		return
	}
	for _, id := range campaignIDs {
		cleaned, err := s.shops.CleanupExpiredBuybacks(ctx, id)
		if err != nil {
			log.Printf("[Scheduler] Buyback cleanup for campaign %s failed: %v", id, err)
			continue
		}
		if cleaned > 0 {
			log.Printf("[Scheduler] Cleaned %d expired buybacks in campaign %s", cleaned, id)
		}
	}
}
