package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbitrage/internal/api"
	"arbitrage/internal/config"
	"arbitrage/internal/corelog"
	"arbitrage/internal/decision"
	"arbitrage/internal/dec"
	"arbitrage/internal/exchange"
	"arbitrage/internal/executor"
	"arbitrage/internal/gridcfg"
	"arbitrage/internal/orchestrator"
	"arbitrage/internal/processor"
	"arbitrage/internal/receiver"
	"arbitrage/internal/repository"
	"arbitrage/internal/risk"
	"arbitrage/internal/service"
	"arbitrage/internal/symbolconv"
	"arbitrage/internal/venue"
	"arbitrage/internal/websocket"
	"arbitrage/pkg/retry"
	"arbitrage/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.InitLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer logger.Sync()
	throttle := corelog.New(logger)

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	// Инициализация репозиториев
	exchangeRepo := repository.NewExchangeRepository(db)
	pairRepo := repository.NewPairRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	blacklistRepo := repository.NewBlacklistRepository(db)

	// Инициализация сервисов
	exchangeService := service.NewExchangeService(
		exchangeRepo,
		pairRepo,
		cfg.Security.EncryptionKey,
	)

	pairService := service.NewPairService(
		pairRepo,
		exchangeRepo,
		exchangeService,
	)

	settingsService := service.NewSettingsService(settingsRepo)
	statsService := service.NewStatsService(statsRepo, pairRepo)
	notificationService := service.NewNotificationService(notifRepo, settingsRepo)
	blacklistService := service.NewBlacklistService(blacklistRepo)

	hub := websocket.NewHub()
	go hub.Run()
	statsService.SetWebSocketHub(hub)
	notificationService.SetWebSocketHub(hub)

	deps := &api.Dependencies{
		ExchangeService:     exchangeService,
		PairService:         pairService,
		StatsService:        statsService,
		SettingsService:     settingsService,
		NotificationService: notificationService,
		BlacklistService:    blacklistService,
		Hub:                 hub,
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting dashboard API on %s", server.Addr)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Движок арбитража: receiver -> processor -> spread -> decision ->
	// executor, просеянный через risk-контроллеры и управляемый
	// orchestrator.Run в отдельной горутине рядом с dashboard API.
	engineCtx, stopEngine := context.WithCancel(context.Background())
	orch, err := buildOrchestrator(cfg, throttle)
	if err != nil {
		log.Printf("Arbitrage engine disabled: %v", err)
	} else {
		orch.SetReporter(&reportBridge{
			pairRepo:     pairRepo,
			exchangeRepo: exchangeRepo,
			statsService: statsService,
			notifService: notificationService,
		})
		go func() {
			if err := orch.Run(engineCtx); err != nil && err != context.Canceled {
				log.Printf("Arbitrage engine stopped: %v", err)
			}
		}()
		log.Println("Arbitrage engine started")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopEngine()

	if err := exchangeService.Close(); err != nil {
		log.Printf("Error closing exchange connections: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// buildOrchestrator wires the receiver/processor/decision/executor/risk
// stack into a running Orchestrator. Symbols, venues and grid/quantity
// parameters come from gridcfg's ARBITRAGE_SYMBOLS/ARBITRAGE_VENUES/
// GRID_*/QTY_* environment variables, the same os.Getenv-driven idiom
// config.Load uses for every other section. Returns an error rather
// than a fatal log so the dashboard can still run standalone when no
// engine configuration is present.
func buildOrchestrator(cfg *config.Config, throttle *corelog.Throttler) (*orchestrator.Orchestrator, error) {
	symbols := gridcfg.LoadSymbols()
	venues := gridcfg.LoadVenues()
	if len(symbols) == 0 || len(venues) == 0 {
		return nil, fmt.Errorf("ARBITRAGE_SYMBOLS and ARBITRAGE_VENUES must both be set")
	}

	conv := symbolconv.New()
	recv := receiver.New(conv)
	proc := processor.New(recv, throttle)

	backoff := risk.NewErrorBackoffController(retry.Config{
		MaxRetries:   cfg.Bot.MaxRetries,
		InitialDelay: cfg.Bot.RetryBackoff,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	})
	globalRisk := risk.NewGlobalRiskController(criticalBalanceFromEnv(), maxDailyTradesFromEnv(), throttle)
	reduceOnly := risk.NewReduceOnlyGuard()
	symState := risk.NewSymbolStateManager()

	engine := decision.New(backoff)

	neutralSymbols := make([]venue.Symbol, len(symbols))
	for i, s := range symbols {
		neutralSymbols[i] = venue.Symbol(s)
	}

	adapters := orchestrator.NewAdapterSet()
	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, v := range venues {
		client, err := exchange.NewExchange(v)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", v, err)
		}
		adapter := exchange.NewVenueAdapter(venue.ID(v), client, conv)
		apiKey, secret, passphrase := venueCredentials(v)
		if err := adapter.Connect(connectCtx, apiKey, secret, passphrase); err != nil {
			return nil, fmt.Errorf("venue %s connect: %w", v, err)
		}
		adapters.Register(venue.ID(v), adapter, neutralSymbols)
		if err := recv.RegisterAdapter(venue.ID(v), adapter, neutralSymbols); err != nil {
			return nil, fmt.Errorf("venue %s subscribe: %w", v, err)
		}
	}

	exec := executor.New(adapters.Lookup)

	orch := orchestrator.New(recv, proc, engine, exec, adapters, backoff, globalRisk, reduceOnly, symState, throttle)

	for _, s := range symbols {
		grid := gridcfg.LoadGridConfig(s)
		if err := grid.Validate(); err != nil {
			return nil, fmt.Errorf("symbol %s: %w", s, err)
		}
		quantity := gridcfg.LoadQuantityConfig(s)

		legs := make([]orchestrator.VenueLeg, len(venues))
		for i, v := range venues {
			legs[i] = orchestrator.VenueLeg{Venue: venue.ID(v), Symbol: venue.Symbol(s)}
		}

		orch.AddRoute(&orchestrator.Route{
			Symbol:   venue.Symbol(s),
			Legs:     legs,
			Grid:     grid,
			Quantity: quantity,
		})
	}

	return orch, nil
}

// reportBridge satisfies orchestrator.Reporter, fanning the engine's
// open/close/balance/error events out to the dashboard's stats,
// exchange and notification repositories so the Postgres-backed
// dashboard reflects what the live engine is actually doing.
type reportBridge struct {
	pairRepo     *repository.PairRepository
	exchangeRepo *repository.ExchangeRepository
	statsService *service.StatsService
	notifService *service.NotificationService
}

func (b *reportBridge) pairIDForSymbol(symbol string) int {
	pairs, err := b.pairRepo.GetAll()
	if err != nil {
		return 0
	}
	for _, p := range pairs {
		if p.Symbol == symbol {
			return p.ID
		}
	}
	return 0
}

func (b *reportBridge) RecordTrade(symbol string, buyVenue, sellVenue string, pnl float64, wasStopLoss, wasLiquidation bool) {
	now := time.Now()
	pairID := b.pairIDForSymbol(symbol)
	if b.statsService != nil {
		if err := b.statsService.RecordTradeCompletion(pairID, symbol, [2]string{buyVenue, sellVenue}, now, now, pnl, wasStopLoss, wasLiquidation); err != nil {
			log.Printf("reportBridge: record trade failed: %v", err)
		}
	}
}

func (b *reportBridge) RecordBalance(v string, balance float64, connected bool, lastErr string) {
	if b.exchangeRepo == nil {
		return
	}
	account, err := b.exchangeRepo.GetByName(v)
	if err != nil {
		return
	}
	if connected {
		_ = b.exchangeRepo.UpdateBalance(account.ID, balance)
	} else {
		_ = b.exchangeRepo.SetLastError(account.ID, lastErr)
	}
}

func (b *reportBridge) Notify(notifType, severity, message string) {
	if b.notifService == nil {
		return
	}
	_ = b.notifService.Notify(notifType, severity, nil, message, nil)
}

// venueCredentials reads a venue's API credentials from
// EXCHANGE_<VENUE>_API_KEY/SECRET/PASSPHRASE, mirroring config.Load's
// getEnv idiom rather than introducing a second config file format.
func venueCredentials(v string) (apiKey, secret, passphrase string) {
	prefix := "EXCHANGE_" + upperSnake(v)
	return os.Getenv(prefix + "_API_KEY"), os.Getenv(prefix + "_SECRET"), os.Getenv(prefix + "_PASSPHRASE")
}

func upperSnake(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func criticalBalanceFromEnv() dec.D {
	v := os.Getenv("GLOBAL_CRITICAL_BALANCE")
	if v == "" {
		return dec.Zero
	}
	d, err := dec.Parse(v)
	if err != nil {
		return dec.Zero
	}
	return d
}

func maxDailyTradesFromEnv() int {
	v := os.Getenv("GLOBAL_MAX_DAILY_TRADES")
	if v == "" {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0
	}
	return n
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
