package main

import (
	"context"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/valerioformato/nutrition-helper/internal/config"
	"github.com/valerioformato/nutrition-helper/internal/dbmigrate"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: go run ./cmd/migrate [up|status|down]")
	}

	command := os.Args[1]
	switch command {
	case "up", "status", "down":
	default:
		log.Fatalf("unsupported command %q (allowed: up, status, down)", command)
	}

	cfg := config.Load()
	dialect, err := dbmigrate.DialectFor(cfg.Driver)
	if err != nil {
		log.Fatal(err)
	}
	dsn, source, err := dbmigrate.SelectDatabaseURL(cfg, false)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("migrate: command=%s dialect=%s using=%s", command, dialect, source)

	if err := dbmigrate.Run(context.Background(), command, dialect, dsn); err != nil {
		log.Fatal(err)
	}

	log.Printf("migrate: %s completed successfully", command)
}
