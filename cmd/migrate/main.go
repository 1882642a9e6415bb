// migrate manages the schema from the embedded SQL files.
//
//	go run ./cmd/migrate -direction up|down
//	go run ./cmd/migrate -version
package main

import (
	"flag"
	"fmt"
	"os"

	"connections-portal/backend/internal/config"
	"connections-portal/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	showVersion := flag.Bool("version", false, "Print the applied schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("config", err)
	}

	if *showVersion {
		v, dirty, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			fail("migrate", err)
		}
		fmt.Printf("schema version %d (dirty=%v)\n", v, dirty)
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fail("migrate", err)
	}
	fmt.Printf("migrate: %s complete\n", *direction)
}

func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", stage, err)
	os.Exit(1)
}
