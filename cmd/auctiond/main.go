// auctiond serves the auction house over HTTP. Configuration comes from
// the environment:
//
//	AUCTIOND_HTTP_ADDR              listen address (default :8080)
//	AUCTIOND_CUSTODIAN              escrow custodian address (default auction-house)
//	AUCTIOND_WRAPPED_CURRENCY       wrapped-native currency id (default wnative)
//	AUCTIOND_PROTOCOL_FEE_BPS       protocol fee in basis points (default 0, disabled)
//	AUCTIOND_PROTOCOL_FEE_RECIPIENT protocol fee recipient, required when bps > 0
//	AUCTIOND_ROYALTY_CONFIG         path to a royalty config JSON file (optional)
//	AUCTIOND_ROYALTY_TTL_SECONDS    royalty cache TTL (default 3600)
//	AUCTIOND_EVENT_JOURNAL          path to the CBOR event journal (optional)
//	DATABASE_URL                    postgres DSN; omitted means in-memory storage
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ourzora/v3-sub003/core"
	"github.com/ourzora/v3-sub003/engine"
	"github.com/ourzora/v3-sub003/escrow"
	"github.com/ourzora/v3-sub003/events"
	"github.com/ourzora/v3-sub003/httpapi"
	"github.com/ourzora/v3-sub003/payment"
	"github.com/ourzora/v3-sub003/registry"
	"github.com/ourzora/v3-sub003/royalty"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("auctiond: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := getEnv("AUCTIOND_HTTP_ADDR", ":8080")
	custodian := getEnv("AUCTIOND_CUSTODIAN", "auction-house")
	wrapped := getEnv("AUCTIOND_WRAPPED_CURRENCY", "wnative")

	var store registry.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pg, err := registry.OpenPostgres(ctx, dsn)
		if err != nil {
			return fmt.Errorf("failed to open postgres store: %w", err)
		}
		defer func() {
			if err := pg.Close(); err != nil {
				log.Printf("ERROR: Failed to close postgres store: %v", err)
			}
		}()
		store = pg
		log.Printf("INFO: Using postgres auction store")
	} else {
		store = registry.NewMemoryStore()
		log.Printf("INFO: Using in-memory auction store")
	}

	assets := escrow.NewLedger(custodian)
	bank := payment.NewBank(custodian, wrapped)

	source := royalty.NewStaticSource()
	if path := os.Getenv("AUCTIOND_ROYALTY_CONFIG"); path != "" {
		if err := loadRoyaltyConfig(source, path); err != nil {
			return fmt.Errorf("failed to load royalty config: %w", err)
		}
		log.Printf("INFO: Loaded royalty config from %s", path)
	}

	ttlSeconds, err := getEnvInt("AUCTIOND_ROYALTY_TTL_SECONDS", 3600)
	if err != nil {
		return err
	}
	royalties := royalty.NewEngine(source, time.Duration(ttlSeconds)*time.Second)
	royalties.StartExpirationCleanup(ctx, time.Minute)

	feeBps, err := getEnvInt("AUCTIOND_PROTOCOL_FEE_BPS", 0)
	if err != nil {
		return err
	}
	feeRecipient := os.Getenv("AUCTIOND_PROTOCOL_FEE_RECIPIENT")
	if feeBps > 0 && feeRecipient == "" {
		return fmt.Errorf("AUCTIOND_PROTOCOL_FEE_RECIPIENT is required when AUCTIOND_PROTOCOL_FEE_BPS > 0")
	}

	hub := events.NewHub()
	sinks := events.MultiSink{events.LogSink{}, hub}
	if path := os.Getenv("AUCTIOND_EVENT_JOURNAL"); path != "" {
		journal, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open event journal: %w", err)
		}
		defer func() {
			if err := journal.Close(); err != nil {
				log.Printf("ERROR: Failed to close event journal: %v", err)
			}
		}()
		sinks = append(sinks, events.NewJournal(journal))
		log.Printf("INFO: Journaling events to %s", path)
	}

	eng := engine.New(
		store, assets, bank, royalties,
		engine.StaticFeeSource(core.Fee{Recipient: feeRecipient, Bps: int64(feeBps)}),
		engine.WithSink(sinks),
	)

	server := httpapi.NewHandler(eng, store, hub).Server(addr)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	log.Printf("INFO: auctiond listening on %s", addr)

	select {
	case <-ctx.Done():
		log.Printf("INFO: Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// royaltyConfig maps collection addresses to royalty shares.
type royaltyConfig map[string][]royalty.Share

func loadRoyaltyConfig(source *royalty.StaticSource, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg royaltyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("invalid royalty config: %w", err)
	}
	for collection, shares := range cfg {
		source.SetCollection(collection, shares)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}
	log.Printf("INFO: Using %s=%d from environment", key, intValue)
	return intValue, nil
}
