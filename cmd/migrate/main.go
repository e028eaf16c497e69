package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/internal/infrastructure/clients/sqldb"
	"github.com/berez-app/berez/backend/internal/infrastructure/migrations"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	"github.com/berez-app/berez/backend/pkg/config"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [up|down|version]")
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger("berez-migrate", cfg.Server.Environment)

	db, err := sqldb.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	switch command {
	case "up":
		err = migrations.Up(db.DB(), db.Driver())
	case "down":
		err = migrations.Down(db.DB(), db.Driver())
	case "version":
		version, dirty, verr := migrations.Version(db.DB(), db.Driver())
		if verr != nil {
			err = verr
			break
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}
	log.Info().Str("command", command).Str("driver", db.Driver()).Msg("migration finished")
}
