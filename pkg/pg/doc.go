// Package pg bootstraps PostgreSQL access on top of pgx/v5.
//
// Connect opens a *pgxpool.Pool from Config, retrying while the server comes up.
// Migrate applies goose migrations from an fs.FS, normally the embedded
// internal/db/migrations set. Healthcheck returns a ping check, and the Is*Error
// helpers classify *pgconn.PgError values so storage code can map constraint
// violations onto domain errors:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//		return err
//	}
//
// Config is read from PG_* environment variables.
package pg
