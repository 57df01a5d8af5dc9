package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/domain"
	"github.com/aussiebroadwan/vouchercheck/internal/verify/store"
)

type requestsRepo struct {
	db *sql.DB
}

const requestColumns = `id, owner_user_id, submitter_is_registered, name, email, phone, code, amount,
	status, created_at, updated_at`

func (r *requestsRepo) CreateRequest(ctx context.Context, req domain.VerificationRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		mapStringNull(req.OwnerUserID),
		req.SubmitterIsRegistered,
		req.Payload.Name,
		req.Payload.Email,
		req.Payload.Phone,
		req.Payload.Code,
		req.Payload.Amount,
		string(req.Status),
		toUnix(req.CreatedAt),
		toUnix(req.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// SetStatus relies on the conditional UPDATE for atomicity: only one writer
// can observe status = 'pending'. The follow-up read only decides which
// error to report.
func (r *requestsRepo) SetStatus(
	ctx context.Context,
	id string,
	status domain.Status,
	now time.Time,
) (domain.VerificationRequest, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE verification_requests
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(status), toUnix(now), id,
	)
	if err != nil {
		return domain.VerificationRequest{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.VerificationRequest{}, err
	}

	req, err := r.GetRequest(ctx, id)
	if err != nil {
		return domain.VerificationRequest{}, err
	}
	if n == 0 {
		return domain.VerificationRequest{}, store.ErrAlreadyTerminal
	}
	return req, nil
}

func (r *requestsRepo) GetRequest(ctx context.Context, id string) (domain.VerificationRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM verification_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err != nil {
		return domain.VerificationRequest{}, mapNotFound(err)
	}
	return req, nil
}

func (r *requestsRepo) ListByOwner(ctx context.Context, userID string) ([]domain.VerificationRequest, error) {
	return r.query(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE owner_user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
}

func (r *requestsRepo) ListAll(ctx context.Context) ([]domain.VerificationRequest, error) {
	return r.query(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		ORDER BY created_at DESC, id DESC`)
}

func (r *requestsRepo) query(ctx context.Context, q string, args ...any) ([]domain.VerificationRequest, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.VerificationRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *requestsRepo) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM verification_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Status]int, len(domain.Statuses))
	for _, st := range domain.Statuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (domain.VerificationRequest, error) {
	var (
		req        domain.VerificationRequest
		owner      sql.NullString
		registered bool
		status     string
		created    int64
		updated    int64
	)
	err := s.Scan(
		&req.ID,
		&owner,
		&registered,
		&req.Payload.Name,
		&req.Payload.Email,
		&req.Payload.Phone,
		&req.Payload.Code,
		&req.Payload.Amount,
		&status,
		&created,
		&updated,
	)
	if err != nil {
		return domain.VerificationRequest{}, err
	}

	req.OwnerUserID = mapNullString(owner)
	req.SubmitterIsRegistered = registered
	req.Status = domain.Status(status)
	req.CreatedAt = fromUnix(created)
	req.UpdatedAt = fromUnix(updated)
	return req, nil
}
