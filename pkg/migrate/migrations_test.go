package migrate_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	"github.com/angelmondragon/sellerhub-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	if err := migrate.ValidateFS(migrate.Migrations()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestDiskAndEmbeddedMigrationsMatch(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.Migrations(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) != len(embedded) {
		t.Fatalf("expected %d embedded migrations, got %d", len(onDisk), len(embedded))
	}
}

func TestMigrationsCarryInvariantChecks(t *testing.T) {
	checks := map[string][]string{
		"*_create_subscriptions.sql": {
			"CREATE TABLE IF NOT EXISTS subscription_plans",
			"CHECK (max_parallel_sessions >= 0)",
			"CHECK (max_stock_per_product >= 0)",
			"CHECK (session_count >= 0)",
			"DROP TABLE IF EXISTS seller_subscription",
		},
		"*_create_seller_stocks.sql": {
			"CHECK (stock_count >= 0)",
			"PRIMARY KEY (seller_id, product_id)",
		},
		"*_create_customer_carts.sql": {
			"CHECK (amount > 0)",
			"PRIMARY KEY (customer_id, product_id, seller_id)",
		},
		"*_create_orders.sql": {
			"order_purchase_timestamp timestamptz NOT NULL",
			"price numeric(12,2) NOT NULL DEFAULT 0",
		},
	}

	for pattern, wants := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil {
			t.Fatalf("glob %s: %v", pattern, err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %d", pattern, len(matches))
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read %s: %v", matches[0], err)
		}
		for _, want := range wants {
			if !strings.Contains(string(data), want) {
				t.Errorf("%s: missing %q", matches[0], want)
			}
		}
	}
}

func TestMigrationsApplyOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	dialect := migrate.DialectFor(config.DBConfig{Driver: config.DBDriverSQLite})
	if dialect != "sqlite3" {
		t.Fatalf("expected sqlite3 dialect, got %q", dialect)
	}
	if err := migrate.Run(context.Background(), sqlDB, dialect, migrate.EmbeddedSource(), "up"); err != nil {
		t.Fatalf("goose up: %v", err)
	}

	version, err := migrate.Version(context.Background(), sqlDB, dialect)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version == 0 {
		t.Fatal("expected a non-zero schema version after up")
	}

	var plans int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM subscription_plans").Scan(&plans); err != nil {
		t.Fatalf("count plans: %v", err)
	}
	if plans != 3 {
		t.Fatalf("expected 3 seeded plans, got %d", plans)
	}

	if _, err := sqlDB.Exec("INSERT INTO sellers (seller_id) VALUES ('s1')"); err != nil {
		t.Fatalf("insert seller: %v", err)
	}
	if _, err := sqlDB.Exec("INSERT INTO products (product_id) VALUES ('p1')"); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := sqlDB.Exec("INSERT INTO seller_stocks (seller_id, product_id, stock_count) VALUES ('s1', 'p1', -1)"); err == nil {
		t.Fatal("expected negative stock to violate the check constraint")
	}
}

func TestDialectDefaultsToPostgres(t *testing.T) {
	if got := migrate.DialectFor(config.DBConfig{Driver: "postgres"}); got != "postgres" {
		t.Fatalf("expected postgres, got %q", got)
	}
}
