package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"creditledger/cmd"
	"creditledger/config"
	"creditledger/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	cmd.ConfigureLogging(config.Get())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "serve" {
		return cmd.Run(ctx)
	}

	switch args[0] {
	case "refresh":
		if len(args) < 2 {
			return fmt.Errorf("usage: creditledger refresh <userID>")
		}
		return cmd.RunRefresh(ctx, args[1])
	case "audit":
		if len(args) < 2 {
			return fmt.Errorf("usage: creditledger audit <userID>")
		}
		return cmd.RunAudit(ctx, args[1])
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: creditledger migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}
