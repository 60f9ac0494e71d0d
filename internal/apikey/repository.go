package apikey

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the api_keys table.
//
//go:embed schema.sql
var Schema string

// Repository persists API keys.
type Repository interface {
	// Create stores key unless the owner already holds maxActive active keys.
	Create(ctx context.Context, key Key, maxActive int, now time.Time) error
	FindByID(ctx context.Context, id string) (Key, error)
	FindByPrefix(ctx context.Context, prefix string) (Key, error)
	Revoke(ctx context.Context, id string) error
	// Replace revokes oldID and stores key in one step. It fails with
	// ErrKeyRevoked when oldID was already revoked.
	Replace(ctx context.Context, oldID string, key Key) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed key repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create serialises key creation per owner with an advisory lock so the
// active-key limit holds under concurrent requests.
func (r *PostgresRepository) Create(ctx context.Context, key Key, maxActive int, now time.Time) error {
	id, err := uuid.Parse(key.ID)
	if err != nil {
		return err
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.UserID); err != nil {
		return fmt.Errorf("lock owner: %w", err)
	}
	var active int
	err = tx.QueryRow(ctx, `SELECT count(*) FROM api_keys
        WHERE user_id = $1 AND NOT revoked AND expires_at > $2`, key.UserID, now.UTC()).Scan(&active)
	if err != nil {
		return fmt.Errorf("count active keys: %w", err)
	}
	if active >= maxActive {
		return ErrTooManyKeys
	}
	_, err = tx.Exec(ctx, `INSERT INTO api_keys (id, user_id, name, key_prefix, key_hash, permissions, expires_at, revoked, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, key.UserID, key.Name, key.Prefix, key.Hash, permissionStrings(key.Permissions), key.ExpiresAt.UTC(), key.Revoked, key.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return tx.Commit(ctx)
}

const selectKey = `SELECT id, user_id, name, key_prefix, key_hash, permissions, expires_at, revoked, created_at FROM api_keys`

// FindByID fetches a key by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Key, error) {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return Key{}, ErrKeyNotFound
	}
	return scanKey(r.db.QueryRow(ctx, selectKey+` WHERE id = $1`, keyID))
}

// FindByPrefix fetches a key by its lookup prefix.
func (r *PostgresRepository) FindByPrefix(ctx context.Context, prefix string) (Key, error) {
	return scanKey(r.db.QueryRow(ctx, selectKey+` WHERE key_prefix = $1`, prefix))
}

// Revoke marks a key revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return ErrKeyNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE api_keys SET revoked = TRUE WHERE id = $1`, keyID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Replace revokes the old key and inserts its successor in one transaction.
// The conditional update makes concurrent rollovers of the same key race for
// a single winner.
func (r *PostgresRepository) Replace(ctx context.Context, oldID string, key Key) error {
	old, err := uuid.Parse(oldID)
	if err != nil {
		return ErrKeyNotFound
	}
	id, err := uuid.Parse(key.ID)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE api_keys SET revoked = TRUE WHERE id = $1 AND NOT revoked`, old)
		if err != nil {
			return fmt.Errorf("revoke replaced key: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM api_keys WHERE id = $1)`, old).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrKeyRevoked
			}
			return ErrKeyNotFound
		}
		_, err = tx.Exec(ctx, `INSERT INTO api_keys (id, user_id, name, key_prefix, key_hash, permissions, expires_at, revoked, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, key.UserID, key.Name, key.Prefix, key.Hash, permissionStrings(key.Permissions), key.ExpiresAt.UTC(), key.Revoked, key.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert api key: %w", err)
		}
		return nil
	})
}

func scanKey(row pgx.Row) (Key, error) {
	var (
		k     Key
		id    uuid.UUID
		perms []string
	)
	err := row.Scan(&id, &k.UserID, &k.Name, &k.Prefix, &k.Hash, &perms, &k.ExpiresAt, &k.Revoked, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Key{}, ErrKeyNotFound
	}
	if err != nil {
		return Key{}, err
	}
	k.ID = id.String()
	k.ExpiresAt = k.ExpiresAt.UTC()
	k.CreatedAt = k.CreatedAt.UTC()
	for _, p := range perms {
		k.Permissions = append(k.Permissions, Permission(p))
	}
	return k, nil
}

func permissionStrings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
