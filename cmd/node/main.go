package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"openorders/internal/config"
	"openorders/internal/net"
	"openorders/internal/node"
	"openorders/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	orders, err := cfg.SeedOrders()
	if err != nil {
		log.Fatal().Err(err).Msg("unable to seed orders")
	}
	book := store.New()
	book.PutOrders(orders...)

	// Setup the TCP server in front of the ledger node.
	srv := net.New(cfg.Node.Address, cfg.Node.Port, node.New(book, cfg.FeeSchedule()))
	if cfg.Node.Timeout > 0 {
		srv.SetConnTimeout(cfg.Node.Timeout)
	}

	log.Info().
		Str("address", cfg.NodeAddress()).
		Int("orders", len(orders)).
		Msg("starting ledger node")

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("ledger node stopped")
	}
}
