package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

// autoMigrateEnabled requires SELLERHUB_AUTO_MIGRATE and a target that is
// either a dev environment or a local SQLite database.
func autoMigrateEnabled(cfg *config.Config) bool {
	if cfg == nil || !cfg.FeatureFlags.AutoMigrate {
		return false
	}
	return cfg.App.IsDev() || cfg.DB.IsSQLite()
}

// MaybeRunDev applies the embedded migrations on startup when auto-migrate
// is enabled for this target, then logs the resulting schema version.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !autoMigrateEnabled(cfg) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	dialect := DialectFor(cfg.DB)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"dialect": dialect,
	})

	if err := Run(ctx, sqlDB, dialect, EmbeddedSource(), "up"); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	version, err := Version(ctx, sqlDB, dialect)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "schema up to date")
	return nil
}
