// Package pg opens pgx connection pools and applies goose migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, nonce.Migrations, nonce.MigrationsDir, cfg.MigrationsTable, log); err != nil {
//		return err
//	}
//
// Healthcheck returns a ping function for readiness probes. Config is
// populated from PG_* environment variables.
package pg
