package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/walletd/walletd/internal/money"
)

// Schema creates the wallets and transactions tables.
//
//go:embed schema.sql
var Schema string

const (
	walletColumns      = `id, user_id, currency, wallet_number, balance, created_at`
	transactionColumns = `id, seq, reference, kind, status, amount, currency, from_wallet_id, to_wallet_id, initiated_by, metadata, created_at`
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists wallets and transactions in PostgreSQL. Balances
// live on the wallet row and are only changed under a row lock.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// WalletByOwner fetches the wallet for a (user, currency) pair.
func (s *PostgresStore) WalletByOwner(ctx context.Context, userID string, currency money.Currency) (Wallet, error) {
	return walletByOwner(ctx, s.db, userID, currency)
}

// WalletsByOwner lists every wallet held by the user.
func (s *PostgresStore) WalletsByOwner(ctx context.Context, userID string) ([]Wallet, error) {
	rows, err := s.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// TransactionByReference fetches a committed transaction by reference.
func (s *PostgresStore) TransactionByReference(ctx context.Context, reference string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference)
	return scanTransaction(row)
}

// TransactionsByWallets lists transactions touching any of the wallets, newest first.
func (s *PostgresStore) TransactionsByWallets(ctx context.Context, walletIDs []string) ([]Transaction, error) {
	ids := make([]uuid.UUID, 0, len(walletIDs))
	for _, id := range walletIDs {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("wallet id %q: %w", id, err)
		}
		ids = append(ids, parsed)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + transactionColumns + ` FROM transactions
        WHERE from_wallet_id = ANY($1) OR to_wallet_id = ANY($1)
        ORDER BY created_at DESC, seq DESC`
	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// CreateWallet inserts a zero-balance wallet.
func (s *PostgresStore) CreateWallet(ctx context.Context, w Wallet) (Wallet, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.Balance = 0
	err := s.db.QueryRow(ctx, `INSERT INTO wallets (id, user_id, currency, wallet_number, balance)
        VALUES ($1, $2, $3, $4, 0) RETURNING created_at`, w.ID, w.UserID, string(w.Currency), w.Number).Scan(&w.CreatedAt)
	if err != nil {
		return Wallet{}, translate(err)
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

// CreateTransaction inserts a PENDING transaction outside of a unit of work.
func (s *PostgresStore) CreateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if t.Status != StatusPending {
		return Transaction{}, fmt.Errorf("create %s transaction outside a unit of work: %w", t.Status, ErrTransactionFinal)
	}
	return insertTransaction(ctx, s.db, t)
}

// WithinTx runs fn inside a READ COMMITTED transaction. Isolation against
// lost updates comes from the explicit row locks taken through Tx.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}
	return translate(tx.Commit(ctx))
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) WalletByOwner(ctx context.Context, userID string, currency money.Currency) (Wallet, error) {
	return walletByOwner(ctx, t.tx, userID, currency)
}

func (t *postgresTx) LockWallets(ctx context.Context, ids ...string) (map[string]Wallet, error) {
	locked := make(map[string]Wallet, len(ids))
	for _, id := range LockOrder(ids...) {
		if _, err := uuid.Parse(id); err != nil {
			return nil, ErrWalletNotFound
		}
		row := t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
		w, err := scanWallet(row)
		if err != nil {
			return nil, err
		}
		locked[id] = w
	}
	return locked, nil
}

func (t *postgresTx) LockTransaction(ctx context.Context, reference string) (Transaction, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1 FOR UPDATE`, reference)
	return scanTransaction(row)
}

func (t *postgresTx) AdjustBalance(ctx context.Context, walletID string, delta money.Amount) (money.Amount, error) {
	var balance int64
	err := t.tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
		int64(delta), walletID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22003" {
			// bigint out of range: the balance cannot hold the credit.
			return 0, &ConstraintError{Kind: ConstraintCheck, Constraint: ConstraintWalletBalance, Err: err}
		}
		return 0, translate(err)
	}
	return money.Amount(balance), nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	return insertTransaction(ctx, t.tx, txn)
}

func (t *postgresTx) SettleTransaction(ctx context.Context, id string, status Status, amount money.Amount, metadata map[string]any) (Transaction, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	row := t.tx.QueryRow(ctx, `UPDATE transactions
        SET status = $2, amount = $3, metadata = metadata || $4::jsonb
        WHERE id = $1 AND status = 'PENDING'
        RETURNING `+transactionColumns, id, string(status), int64(amount), metadata)
	settled, err := scanTransaction(row)
	if errors.Is(err, ErrTransactionNotFound) {
		var current string
		if err := t.tx.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Transaction{}, ErrTransactionNotFound
			}
			return Transaction{}, err
		}
		return Transaction{}, fmt.Errorf("settle %s transaction: %w", current, ErrTransactionFinal)
	}
	return settled, err
}

func walletByOwner(ctx context.Context, q querier, userID string, currency money.Currency) (Wallet, error) {
	row := q.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND currency = $2`, userID, string(currency))
	return scanWallet(row)
}

func insertTransaction(ctx context.Context, q querier, t Transaction) (Transaction, error) {
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	const query = `INSERT INTO transactions
        (id, reference, kind, status, amount, currency, from_wallet_id, to_wallet_id, initiated_by, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING seq, created_at`
	err := q.QueryRow(ctx, query, t.ID, t.Reference, string(t.Kind), string(t.Status), int64(t.Amount),
		string(t.Currency), nullable(t.FromWalletID), nullable(t.ToWalletID), nullable(t.InitiatedBy), t.Metadata,
	).Scan(&t.Seq, &t.CreatedAt)
	if err != nil {
		return Transaction{}, translate(err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		currency  string
		balance   int64
		createdAt time.Time
	)
	if err := row.Scan(&id, &w.UserID, &currency, &w.Number, &balance, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.Currency = money.Currency(currency)
	w.Balance = money.Amount(balance)
	w.CreatedAt = createdAt.UTC()
	return w, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t           Transaction
		id          uuid.UUID
		kind        string
		status      string
		amount      int64
		currency    string
		from, to    uuid.NullUUID
		initiatedBy *string
		createdAt   time.Time
	)
	if err := row.Scan(&id, &t.Seq, &t.Reference, &kind, &status, &amount, &currency,
		&from, &to, &initiatedBy, &t.Metadata, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	t.ID = id.String()
	t.Kind = Kind(kind)
	t.Status = Status(status)
	t.Amount = money.Amount(amount)
	t.Currency = money.Currency(currency)
	if from.Valid {
		t.FromWalletID = from.UUID.String()
	}
	if to.Valid {
		t.ToWalletID = to.UUID.String()
	}
	if initiatedBy != nil {
		t.InitiatedBy = *initiatedBy
	}
	t.CreatedAt = createdAt.UTC()
	return t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// translate converts Postgres integrity violations into *ConstraintError.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return &ConstraintError{Kind: ConstraintDuplicate, Constraint: pgErr.ConstraintName, Err: err}
	case "23514":
		return &ConstraintError{Kind: ConstraintCheck, Constraint: pgErr.ConstraintName, Err: err}
	case "23503":
		return &ConstraintError{Kind: ConstraintNotFound, Constraint: pgErr.ConstraintName, Err: err}
	default:
		return err
	}
}
