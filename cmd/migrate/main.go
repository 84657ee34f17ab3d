package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"career-advisor-platform/internal/config"
	"career-advisor-platform/internal/infra/db/migrations"
	"career-advisor-platform/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log, false)

	m, err := migrations.New(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("init migrations")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Error().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrations")
		}
	}()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info().Msg("no change: schema is up to date")
		case err != nil:
			log.Fatal().Err(err).Msg("migrate up")
		default:
			log.Info().Msg("migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatal().Err(err).Msg("roll back last migration")
		}
		log.Info().Msg("last migration rolled back")

	case "goto":
		if flag.NArg() < 2 {
			log.Fatal().Msg("goto needs a version number")
		}
		version, err := strconv.ParseUint(flag.Arg(1), 10, 64)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid version")
		}
		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info().Uint64("version", version).Msg("no change: already at version")
		case err != nil:
			log.Fatal().Err(err).Uint64("version", version).Msg("migrate to version")
		default:
			log.Info().Uint64("version", version).Msg("migrated")
		}

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Info().Msg("no migrations applied yet")
		case err != nil:
			log.Fatal().Err(err).Msg("read version")
		default:
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current schema version")
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: migrate [-config config.yaml] <command>")
	fmt.Println("commands:")
	fmt.Println("  up           apply all pending migrations")
	fmt.Println("  down         roll back the last migration")
	fmt.Println("  goto <ver>   migrate up or down to a version")
	fmt.Println("  status       print the current version")
}
