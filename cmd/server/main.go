package main

import (
	"log"
	"net/http"

	"realmforge/internal/auth"
	"realmforge/internal/campaign"
	"realmforge/internal/condition"
	"realmforge/internal/config"
	"realmforge/internal/gateway"
	"realmforge/internal/ledger"
	"realmforge/internal/player"
	"realmforge/internal/scheduler"
	"realmforge/internal/shop"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}

	authService, authMode, err := auth.NewServiceFromEnv(cfg.Storage.Mode)
	if err != nil {
		log.Fatalf("[Server] Failed to init auth manager: %v", err)
	}
	defer authService.Close()
	campaignService, campaignMode, err := campaign.NewServiceFromEnv(cfg.Storage.Mode)
	if err != nil {
		log.Fatalf("[Server] Failed to init campaign service: %v", err)
	}
	defer campaignService.Close()
	playerService, _, err := player.NewServiceFromEnv(cfg.Storage.Mode)
	if err != nil {
		log.Fatalf("[Server] Failed to init player service: %v", err)
	}
	defer playerService.Close()
	ledgerService, _, err := ledger.NewServiceFromEnv(cfg.Storage.Mode)
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()
	conditionService, _, err := condition.NewServiceFromEnv(cfg.Storage.Mode)
	if err != nil {
		log.Fatalf("[Server] Failed to init condition service: %v", err)
	}
	defer conditionService.Close()
	shopStore, shopMode, err := shop.NewStoreFromEnv(cfg.Storage.Mode)
	if err != nil {
		log.Fatalf("[Server] Failed to init shop store: %v", err)
	}
	defer shopStore.Close()

	shopService := shop.NewService(shopStore, campaignService, playerService, ledgerService)
	defer shopService.Close()
	engine := condition.NewEngine(conditionService, playerService, campaignService)
	authorizer := auth.NewAuthorizer(authService, campaignService)

	gw := gateway.New(authService, shopService, engine)
	authHTTP := auth.NewHTTPHandler(authService)
	shopHTTP := shop.NewHTTPHandler(shopService, authorizer, ledgerService)
	conditionHTTP := condition.NewHTTPHandler(conditionService, engine, authorizer)

	sched := scheduler.New(shopService, scheduler.Config{
		RestockInterval:        cfg.Scheduler.RestockInterval.Std(),
		BuybackCleanupInterval: cfg.Scheduler.BuybackCleanupInterval.Std(),
		CounterIdleTTL:         cfg.Scheduler.CounterIdleTTL.Std(),
	})
	sched.Start()
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	authHTTP.RegisterRoutes(mux)
	shopHTTP.RegisterRoutes(mux)
	conditionHTTP.RegisterRoutes(mux)

	log.Printf("[Server] Auth mode: %s", authMode)
	log.Printf("[Server] Campaign mode: %s", campaignMode)
	log.Printf("[Server] Shop store mode: %s", shopMode)
	log.Printf("[Server] Starting server on %s", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
}
