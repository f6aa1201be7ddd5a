package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"creditledger/config"
	"creditledger/database"
	"creditledger/events"
	"creditledger/repository"
	"creditledger/service"

	log "github.com/sirupsen/logrus"
)

// openLedger connects to the database and builds a credit service with an
// in-process event bus. The returned function closes the connection.
func openLedger(ctx context.Context, cfg *config.Config) (*service.CreditService, func(), error) {
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, events.NewBus())
	return service.NewCreditService(uowFactory, cfg.CreditPolicy()), db.Close, nil
}

// RunRefresh applies a due refresh to one user
func RunRefresh(ctx context.Context, userID string) error {
	cfg := config.Get()
	ledger, closeDB, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	refreshed, err := ledger.RefreshIfDue(ctx, userID, cfg.DailyRefreshAmount)
	if err != nil {
		return fmt.Errorf("failed to refresh credits for %s: %w", userID, err)
	}
	credit, err := ledger.GetBalance(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read balance for %s: %w", userID, err)
	}

	log.WithFields(log.Fields{
		"userID":    userID,
		"refreshed": refreshed,
		"balance":   credit.Balance,
	}).Info("Refresh complete")
	return nil
}

// RunAudit prints the ledger audit of one user and fails when the stored
// balance does not match the sum of its entries.
func RunAudit(ctx context.Context, userID string) error {
	cfg := config.Get()
	ledger, closeDB, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	audit, err := ledger.VerifyLedger(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to audit ledger for %s: %w", userID, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(audit); err != nil {
		return fmt.Errorf("failed to write audit: %w", err)
	}
	if !audit.Consistent {
		return fmt.Errorf("ledger for %s is inconsistent: balance %d, ledger sum %d", userID, audit.Balance, audit.LedgerSum)
	}
	return nil
}
