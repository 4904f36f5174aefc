package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"matcher/internal/config"
	"matcher/internal/engine"
	"matcher/internal/logging"
	"matcher/internal/view"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config (defaults to the built-in demo)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Setup the book and its single writer.
	eng := engine.NewEngine(
		engine.NewOrderBook(),
		engine.WithQueueSize(cfg.Engine.QueueSize),
		engine.WithLogger(logger),
	)
	eng.Start(ctx)

	if err := run(ctx, eng, cfg, view.New(os.Stdout)); err != nil {
		log.Error().Err(err).Msg("demo failed")
	}
	if err := eng.Stop(); err != nil {
		log.Error().Err(err).Msg("unable to stop engine")
		os.Exit(1)
	}
}

func run(ctx context.Context, eng *engine.Engine, cfg config.Config, out *view.BookView) error {
	if _, err := submitAll(ctx, eng, cfg.Demo.Orders); err != nil {
		return err
	}
	if err := out.Print(eng.Book()); err != nil {
		return err
	}
	if len(cfg.Demo.Sweep) == 0 {
		return nil
	}

	fmt.Println("Doing a fire sale")
	reports, err := submitAll(ctx, eng, cfg.Demo.Sweep)
	if err != nil {
		return err
	}
	for _, report := range reports {
		if err := out.PrintTrades(report.Trades); err != nil {
			return err
		}
	}
	return out.Print(eng.Book())
}

func submitAll(ctx context.Context, eng *engine.Engine, orders []config.OrderConfig) ([]engine.Report, error) {
	reports := make([]engine.Report, 0, len(orders))
	for _, o := range orders {
		order, err := o.Order()
		if err != nil {
			return nil, err
		}
		report, err := eng.Submit(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("submit order %d: %w", order.ID, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
