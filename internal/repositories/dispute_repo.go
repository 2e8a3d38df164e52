package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/p2p-exchange/backend/internal/models"
)

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

const disputeColumns = `id, trade_id, initiator_id, respondent_id, reason, disputed_from, status,
       resolution, auto_resolved, resolve_reason, appeal_reason, resolved_at, created_at, updated_at`

func scanDispute(row pgx.Row, d *models.Dispute) error {
	return row.Scan(&d.ID, &d.TradeID, &d.InitiatorID, &d.RespondentID, &d.Reason, &d.DisputedFrom,
		&d.Status, &d.Resolution, &d.AutoResolved, &d.ResolveReason, &d.AppealReason, &d.ResolvedAt,
		&d.CreatedAt, &d.UpdatedAt)
}

// Create inserts a new open dispute. The partial unique index on trade_id
// (non-closed disputes) turns a concurrent double-raise into
// ErrDuplicateDispute instead of two open cases.
func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO disputes (trade_id, initiator_id, respondent_id, reason, disputed_from, status, resolution)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, d.TradeID, d.InitiatorID, d.RespondentID, d.Reason, d.DisputedFrom, d.Status, d.Resolution,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return models.ErrDuplicateDispute
	}
	return err
}

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := scanDispute(r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id), &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetOpenByTradeID returns the trade's single non-closed dispute, if any.
func (r *DisputeRepo) GetOpenByTradeID(ctx context.Context, tradeID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := scanDispute(r.pool.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE trade_id = $1 AND status != $2
	`, tradeID, models.DisputeStatusClosed), &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepo) ListByStatus(ctx context.Context, status *string, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `SELECT ` + disputeColumns + ` FROM disputes`
	args := []any{}
	argIdx := 1
	if status != nil {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, *status)
		argIdx++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := scanDispute(rows, &d); err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

// ListActive returns disputes awaiting evaluation or review, oldest first.
func (r *DisputeRepo) ListActive(ctx context.Context, limit int) ([]models.Dispute, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC LIMIT $3
	`, models.DisputeStatusOpen, models.DisputeStatusUnderReview, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := scanDispute(rows, &d); err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

// ListResolvedBefore returns resolved disputes whose resolution predates the
// cutoff, i.e. whose appeal window has lapsed.
func (r *DisputeRepo) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Dispute, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE status = $1 AND resolved_at < $2
		ORDER BY resolved_at ASC LIMIT $3
	`, models.DisputeStatusResolved, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := scanDispute(rows, &d); err != nil {
			return nil, err
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

// UpdateStatus performs a compare-and-set dispute status transition.
func (r *DisputeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkResolved commits a resolution from the given status. resolved_at is
// set exactly once, at first resolution; an appealed dispute re-resolved by
// an admin keeps its original timestamp.
func (r *DisputeRepo) MarkResolved(ctx context.Context, id uuid.UUID, from, resolution, reason string, auto bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes
		SET status = $1, resolution = $2, resolve_reason = $3, auto_resolved = $4,
		    resolved_at = COALESCE(resolved_at, now()), updated_at = now()
		WHERE id = $5 AND status = $6
	`, models.DisputeStatusResolved, resolution, reason, auto, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAppealed moves a resolved dispute into appealed with the appellant's
// reason.
func (r *DisputeRepo) MarkAppealed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE disputes SET status = $1, appeal_reason = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.DisputeStatusAppealed, reason, id, models.DisputeStatusResolved)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ---- Evidence ----

func (r *DisputeRepo) AddEvidence(ctx context.Context, e *models.Evidence) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO dispute_evidence (dispute_id, uploader_id, kind, description, content_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, e.DisputeID, e.UploaderID, e.Kind, e.Description, e.ContentURL).Scan(&e.ID, &e.CreatedAt)
}

// ListEvidence returns evidence strictly in submission order; the seq column
// breaks created_at ties so storage never reorders the audit surface.
func (r *DisputeRepo) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.Evidence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dispute_id, uploader_id, kind, description, content_url, created_at
		FROM dispute_evidence WHERE dispute_id = $1 ORDER BY seq ASC
	`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evidence []models.Evidence
	for rows.Next() {
		var e models.Evidence
		if err := rows.Scan(&e.ID, &e.DisputeID, &e.UploaderID, &e.Kind, &e.Description, &e.ContentURL, &e.CreatedAt); err != nil {
			return nil, err
		}
		evidence = append(evidence, e)
	}
	return evidence, rows.Err()
}

// ---- Messages ----

func (r *DisputeRepo) AddMessage(ctx context.Context, m *models.DisputeMessage) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO dispute_messages (dispute_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, m.DisputeID, m.SenderID, m.Body).Scan(&m.ID, &m.CreatedAt)
}

func (r *DisputeRepo) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dispute_id, sender_id, body, created_at
		FROM dispute_messages WHERE dispute_id = $1 ORDER BY seq ASC
	`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.DisputeMessage
	for rows.Next() {
		var m models.DisputeMessage
		if err := rows.Scan(&m.ID, &m.DisputeID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ---- Admin notes ----

func (r *DisputeRepo) AddNote(ctx context.Context, n *models.DisputeNote) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO dispute_notes (dispute_id, admin_id, note)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, n.DisputeID, n.AdminID, n.Note).Scan(&n.ID, &n.CreatedAt)
}

func (r *DisputeRepo) ListNotes(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeNote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dispute_id, admin_id, note, created_at
		FROM dispute_notes WHERE dispute_id = $1 ORDER BY created_at ASC
	`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []models.DisputeNote
	for rows.Next() {
		var n models.DisputeNote
		if err := rows.Scan(&n.ID, &n.DisputeID, &n.AdminID, &n.Note, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
