package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"autoservice/internal/config"
	"autoservice/internal/database"
	"autoservice/internal/domain"
	"autoservice/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		servicesPath = flag.String("services", "configs/services.yaml", "path to services.yaml")
		dbPath       = flag.String("db", "./data/autoservice.db", "path to sqlite db")
		tz           = flag.String("tz", "Europe/Moscow", "business time zone")
		update       = flag.Bool("update", false, "overwrite price and payout of existing services")
	)
	flag.Parse()

	services, err := config.LoadServices(*servicesPath)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return fmt.Errorf("no services in %s", *servicesPath)
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("load location: %w", err)
	}

	db, err := database.NewDB(*dbPath, loc, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalog := service.NewCatalogService(db, &logger)
	created, err := catalog.Seed(ctx, services)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	updated := 0
	if *update {
		for _, svc := range services {
			current, err := catalog.Get(ctx, svc.Name)
			if errors.Is(err, domain.ErrUnknownService) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", svc.Name, err)
			}
			if current.Price == svc.Price && current.Payout == svc.Payout {
				continue
			}
			// payout must stay <= price after each step
			steps := []func() error{
				func() error { return catalog.ChangePrice(ctx, svc.Name, svc.Price) },
				func() error { return catalog.ChangePayout(ctx, svc.Name, svc.Payout) },
			}
			if svc.Price < current.Price {
				steps[0], steps[1] = steps[1], steps[0]
			}
			for _, step := range steps {
				if err := step(); err != nil {
					return fmt.Errorf("update %s: %w", svc.Name, err)
				}
			}
			updated++
		}
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
