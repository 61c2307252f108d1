// Package main applies the embedded schema migrations.
//
// Usage:
//
//	migrate up
//	migrate down [N]
//	migrate version
//	migrate force VERSION
package main

import (
	"fmt"
	"os"
	"strconv"

	"supplyledger/internal/app"
	"supplyledger/internal/infrastructure/config"
	"supplyledger/internal/infrastructure/migration"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: migrate up | down [N] | version | force VERSION")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	m, err := migration.New(cfg.Database.URL, log.Desugar())
	if err != nil {
		log.Fatalw("failed to initialize migrator", "error", err)
	}
	defer func() { _ = m.Close() }()

	switch cmd := os.Args[1]; cmd {
	case "up":
		err = m.Up()
	case "down":
		if len(os.Args) > 2 {
			var n int
			n, err = strconv.Atoi(os.Args[2])
			if err == nil {
				err = m.Steps(-n)
			}
		} else {
			err = m.Down()
		}
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = m.Version()
		if err == nil {
			log.Infow("schema version", "version", version, "dirty", dirty)
		}
	case "force":
		if len(os.Args) < 3 {
			log.Fatal("force requires a version")
		}
		var v int
		v, err = strconv.Atoi(os.Args[2])
		if err == nil {
			err = m.Force(v)
		}
	default:
		log.Fatalw("unknown command", "command", cmd)
	}

	if err != nil {
		log.Fatalw("migration failed", "command", os.Args[1], "error", err)
	}
}
