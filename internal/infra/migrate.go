package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockID serialises schema setup across replicas starting together.
const migrationLockID = 7_311_004

// Migrate applies idempotent schema scripts in order inside one transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schemas ...string) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		for i, schema := range schemas {
			if _, err := tx.Exec(ctx, schema); err != nil {
				return fmt.Errorf("apply schema %d: %w", i, err)
			}
		}
		return nil
	})
}
