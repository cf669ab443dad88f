package main

import (
	"bytes"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopsim/db"
	"github.com/xenking/shopsim/internal/domain/category"
	"github.com/xenking/shopsim/internal/domain/user"
	"github.com/xenking/shopsim/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		catalogFile   string
		adminEmail    string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog", "", "path to a catalog JSON file, optionally .gz (defaults to the embedded demo catalog)")
	flag.StringVar(&adminEmail, "admin-email", "admin@shop.local", "email of the admin account to create")
	flag.StringVar(&adminPassword, "admin-password", "", "admin password (or SHOP_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("SHOP_SEED_ADMIN_PASSWORD")
	}
	if len(adminPassword) < 8 {
		slog.Error("admin password of at least 8 characters is required: set --admin-password or SHOP_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, adminEmail, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, adminEmail, adminPassword string) error {
	c, err := readCatalog(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

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

	now := time.Now().UTC()
	categoryIDs, err := seedCategories(ctx, postgres.NewCategoryRepository(pool), c.Categories, now)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := seedProducts(ctx, postgres.NewProductRepository(pool), c.Products, categoryIDs, now); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedAdmin(ctx, postgres.NewUserRepository(pool), adminEmail, adminPassword, now); err != nil {
		return errors.Wrap(err, "seed admin")
	}
	return nil
}

func readCatalog(path string) (*catalog, error) {
	if path == "" {
		slog.Info("using embedded demo catalog")
		return parseCatalog(bytes.NewReader(db.Catalog), false)
	}
	slog.Info("reading catalog file", slog.String("path", path))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return parseCatalog(f, strings.HasSuffix(path, ".gz"))
}

func seedCategories(ctx context.Context, repo *postgres.CategoryRepository, in []catalogCategory, now time.Time) (map[string]int64, error) {
	ids := make(map[string]int64, len(in))
	for _, cc := range in {
		c := category.Category{
			Name:        cc.Name,
			Description: cc.Description,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repo.Upsert(ctx, &c); err != nil {
			return nil, err
		}
		ids[c.Name] = c.ID
		slog.Info("upserted category", slog.Int64("id", c.ID), slog.String("name", c.Name))
	}
	return ids, nil
}

// seedProducts upserts products with at most four statements in flight.
func seedProducts(ctx context.Context, repo *postgres.ProductRepository, in []catalogProduct, categoryIDs map[string]int64, now time.Time) error {
	slog.Info("upserting products", slog.Int("count", len(in)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, cp := range in {
		p := cp.product(categoryIDs[cp.Category], now)
		g.Go(func() error {
			if err := repo.Upsert(ctx, &p); err != nil {
				return err
			}
			slog.Info("upserted product",
				slog.Int64("id", p.ID),
				slog.String("sku", p.SKU),
				slog.String("price", p.Price.StringFixed(2)),
			)
			return nil
		})
	}
	return g.Wait()
}

func seedAdmin(ctx context.Context, repo *postgres.UserRepository, email, password string, now time.Time) error {
	hash, err := user.HashPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := user.User{
		FirstName:    "Admin",
		Email:        user.NormalizeEmail(email),
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Upsert(ctx, &u); err != nil {
		return err
	}
	slog.Info("upserted admin", slog.Int64("id", u.ID), slog.String("email", u.Email))
	return nil
}
