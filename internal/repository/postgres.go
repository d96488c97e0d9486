package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/saferide/ridepay/internal/models"
)

// PostgresStore is the durable ledger store backed by a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) Reader() Tx {
	return &pgTx{q: s.db}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	q querier
}

const entryColumns = `id, group_id, wallet_id, type, direction, actor_kind, system_wallet,
	amount::text, currency, status, psp_ref,
	before_avail::text, after_avail::text, before_pending::text, after_pending::text,
	note, created_at`

func (t *pgTx) CreateWallet(ctx context.Context, w *models.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, is_active, created_at) VALUES ($1, $2, $3, NOW()) RETURNING created_at`
	err := t.q.QueryRow(ctx, query, toPgUUID(w.ID), toPgUUID(w.UserID), w.IsActive).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

func (t *pgTx) GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return t.scanWallet(ctx, `SELECT id, user_id, is_active, created_at FROM wallets WHERE id = $1`, id)
}

func (t *pgTx) GetWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return t.scanWallet(ctx, `SELECT id, user_id, is_active, created_at FROM wallets WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) scanWallet(ctx context.Context, query string, id uuid.UUID) (*models.Wallet, error) {
	var (
		w      models.Wallet
		wid    pgtype.UUID
		userID pgtype.UUID
	)
	err := t.q.QueryRow(ctx, query, toPgUUID(id)).Scan(&wid, &userID, &w.IsActive, &w.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrWalletNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	w.ID = fromPgUUID(wid)
	w.UserID = fromPgUUID(userID)
	return &w, nil
}

func (t *pgTx) SetWalletActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := t.q.Exec(ctx, `UPDATE wallets SET is_active = $1 WHERE id = $2`, active, toPgUUID(id))
	if err != nil {
		return fmt.Errorf("set wallet active: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return models.ErrWalletNotFound
	}
	return nil
}

func (t *pgTx) CreateEntry(ctx context.Context, e *models.LedgerEntry) error {
	var walletID pgtype.UUID
	if e.WalletID != nil {
		walletID = toPgUUID(*e.WalletID)
	}
	query := `INSERT INTO ledger_entries
		(id, group_id, wallet_id, type, direction, actor_kind, system_wallet,
		 amount, currency, status, psp_ref,
		 before_avail, after_avail, before_pending, after_pending, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NOW())
		RETURNING created_at`
	err := t.q.QueryRow(ctx, query,
		toPgUUID(e.ID), toPgUUID(e.GroupID), walletID,
		e.Type, e.Direction, e.ActorKind, e.SystemWallet,
		e.Amount.String(), e.Currency, e.Status, e.PspRef,
		e.BeforeAvail.String(), e.AfterAvail.String(), e.BeforePending.String(), e.AfterPending.String(),
		e.Note,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ledger entry: %w", err)
	}
	return nil
}

func (t *pgTx) EntriesByWallet(ctx context.Context, walletID uuid.UUID) ([]models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE wallet_id = $1 ORDER BY created_at, id`, entryColumns)
	return t.queryEntries(ctx, query, toPgUUID(walletID))
}

func (t *pgTx) EntriesByGroup(ctx context.Context, groupID uuid.UUID) ([]models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE group_id = $1 ORDER BY created_at, id`, entryColumns)
	return t.queryEntries(ctx, query, toPgUUID(groupID))
}

func (t *pgTx) EntriesByGroupForUpdate(ctx context.Context, groupID uuid.UUID) ([]models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE group_id = $1 ORDER BY created_at, id FOR UPDATE`, entryColumns)
	return t.queryEntries(ctx, query, toPgUUID(groupID))
}

func (t *pgTx) EntriesByPspRef(ctx context.Context, pspRef string) ([]models.LedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE psp_ref = $1 ORDER BY created_at, id`, entryColumns)
	return t.queryEntries(ctx, query, pspRef)
}

func (t *pgTx) UpdateEntryStatus(ctx context.Context, id uuid.UUID, status string) (int64, error) {
	tag, err := t.q.Exec(ctx, `UPDATE ledger_entries SET status = $1 WHERE id = $2`, status, toPgUUID(id))
	if err != nil {
		return 0, fmt.Errorf("update entry status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) AppendEntryNote(ctx context.Context, id uuid.UUID, note string) error {
	query := `UPDATE ledger_entries
		SET note = CASE WHEN note = '' THEN $1 ELSE note || E'\n' || $1 END
		WHERE id = $2`
	tag, err := t.q.Exec(ctx, query, note, toPgUUID(id))
	if err != nil {
		return fmt.Errorf("append entry note: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return models.ErrEntryNotFound
	}
	return nil
}

func (t *pgTx) LedgerSums(ctx context.Context, excludeTypes []string) (decimal.Decimal, decimal.Decimal, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE direction = 'IN'), 0)::text,
		COALESCE(SUM(amount) FILTER (WHERE direction = 'OUT'), 0)::text
		FROM ledger_entries
		WHERE status = 'SUCCESS' AND NOT (type = ANY($1))`
	var inStr, outStr string
	if err := t.q.QueryRow(ctx, query, excludeTypes).Scan(&inStr, &outStr); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("ledger sums: %w", err)
	}
	in, err := decimal.NewFromString(inStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse ledger IN sum: %w", err)
	}
	out, err := decimal.NewFromString(outStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse ledger OUT sum: %w", err)
	}
	return in, out, nil
}

func (t *pgTx) PendingGatewayRefs(ctx context.Context, entryType, marker string, olderThan, newerThan time.Time, limit int32) ([]string, error) {
	query := `SELECT DISTINCT psp_ref FROM ledger_entries
		WHERE type = $1
		  AND status IN ('PENDING', 'PROCESSING')
		  AND psp_ref <> ''
		  AND position($2 in note) > 0
		  AND created_at <= $3
		  AND created_at > $4
		LIMIT $5`
	rows, err := t.q.Query(ctx, query, entryType, marker, olderThan, newerThan, limit)
	if err != nil {
		return nil, fmt.Errorf("pending gateway refs: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("scan gateway ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (t *pgTx) queryEntries(ctx context.Context, query string, args ...any) ([]models.LedgerEntry, error) {
	rows, err := t.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var (
		e        models.LedgerEntry
		id       pgtype.UUID
		groupID  pgtype.UUID
		walletID pgtype.UUID
		amounts  [5]string
	)
	err := row.Scan(&id, &groupID, &walletID, &e.Type, &e.Direction, &e.ActorKind, &e.SystemWallet,
		&amounts[0], &e.Currency, &e.Status, &e.PspRef,
		&amounts[1], &amounts[2], &amounts[3], &amounts[4],
		&e.Note, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.ID = fromPgUUID(id)
	e.GroupID = fromPgUUID(groupID)
	if walletID.Valid {
		w := fromPgUUID(walletID)
		e.WalletID = &w
	}
	dst := []*decimal.Decimal{&e.Amount, &e.BeforeAvail, &e.AfterAvail, &e.BeforePending, &e.AfterPending}
	for i, s := range amounts {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("parse entry amount column %d: %w", i, err)
		}
		*dst[i] = d
	}
	return &e, nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func fromPgUUID(id pgtype.UUID) uuid.UUID {
	return uuid.UUID(id.Bytes)
}
