// Command seed-db loads the restaurant catalog from a JSON file into
// PostgreSQL. Files ending in .gz are decompressed on the fly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/quickbite/orderflow/internal/domain/catalog"
	"github.com/quickbite/orderflow/internal/storage/postgres"
)

type restaurantJSON struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Cuisine      string  `json:"cuisine"`
	Rating       float64 `json:"rating"`
	DeliveryTime string  `json:"deliveryTime"`
	Image        string  `json:"image"`
	Description  string  `json:"description"`
}

type menuItemJSON struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurantId"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image"`
	Category     string          `json:"category"`
}

type catalogJSON struct {
	Restaurants []restaurantJSON `json:"restaurants"`
	MenuItems   []menuItemJSON   `json:"menuItems"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file (.gz supported)")
	flag.IntVar(&workers, "workers", 8, "concurrent upsert workers")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, workers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string, workers int) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	data, err := readCatalog(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

	repo := postgres.NewCatalogRepository(pool)

	// Restaurants first: menu items reference them.
	slog.Info("upserting restaurants", slog.Int("count", len(data.Restaurants)))
	for _, r := range data.Restaurants {
		if err := repo.UpsertRestaurant(ctx, catalog.Restaurant{
			ID:           r.ID,
			Name:         r.Name,
			Cuisine:      r.Cuisine,
			Rating:       r.Rating,
			DeliveryTime: r.DeliveryTime,
			Image:        r.Image,
			Description:  r.Description,
		}); err != nil {
			return errors.Wrapf(err, "upsert restaurant %s", r.ID)
		}

		slog.Info("upserted restaurant", slog.String("id", r.ID), slog.String("name", r.Name))
	}

	slog.Info("upserting menu items",
		slog.Int("count", len(data.MenuItems)),
		slog.Int("workers", workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, m := range data.MenuItems {
		g.Go(func() error {
			if err := repo.UpsertMenuItem(gctx, catalog.MenuItem{
				ID:           m.ID,
				RestaurantID: m.RestaurantID,
				Name:         m.Name,
				Description:  m.Description,
				Price:        m.Price,
				Image:        m.Image,
				Category:     m.Category,
			}); err != nil {
				return errors.Wrapf(err, "upsert menu item %s", m.ID)
			}
			return nil
		})
	}
	return g.Wait()
}

func readCatalog(path string) (*catalogJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip reader")
		}
		defer gz.Close()
		r = gz
	}

	var data catalogJSON
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}
	return &data, nil
}
