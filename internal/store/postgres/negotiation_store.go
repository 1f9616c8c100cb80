package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// NegotiationStore implements domain.NegotiationStore using PostgreSQL.
// Activate and CloseIf are conditional UPDATEs on the status column, which is
// the compare-and-swap that makes concurrent terminal requests race safely.
type NegotiationStore struct {
	pool *pgxpool.Pool
}

// NewNegotiationStore creates a NegotiationStore backed by the given pool.
func NewNegotiationStore(pool *pgxpool.Pool) *NegotiationStore {
	return &NegotiationStore{pool: pool}
}

const negotiationSelectCols = `id, product_id, vendor_id, customer_id, quantity, status,
	best_offer_amount, best_offer_side, closed_by, closed_reason,
	created_at, expires_at, closed_at`

// Create inserts a new negotiation.
func (s *NegotiationStore) Create(ctx context.Context, n domain.Negotiation) error {
	const query = `
		INSERT INTO negotiations (
			id, product_id, vendor_id, customer_id, quantity, status,
			best_offer_amount, best_offer_side, closed_by, closed_reason,
			created_at, expires_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		n.ID, n.ProductID, n.VendorID, n.CustomerID, n.Quantity, string(n.Status),
		n.BestOfferAmount, string(n.BestOfferSide), n.ClosedBy, n.ClosedReason,
		n.CreatedAt, n.ExpiresAt, n.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create negotiation %s: %w", n.ID, err)
	}
	return nil
}

// GetByID retrieves a single negotiation.
func (s *NegotiationStore) GetByID(ctx context.Context, id string) (domain.Negotiation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+negotiationSelectCols+` FROM negotiations WHERE id = $1`, id)

	n, err := scanNegotiation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Negotiation{}, domain.ErrNegotiationNotFound
		}
		return domain.Negotiation{}, fmt.Errorf("postgres: get negotiation %s: %w", id, err)
	}
	return n, nil
}

// Activate moves a created negotiation to active. Already-active is a no-op;
// a terminal status is an invalid transition.
func (s *NegotiationStore) Activate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE negotiations SET status = 'active' WHERE id = $1 AND status = 'created'`, id)
	if err != nil {
		return fmt.Errorf("postgres: activate negotiation %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	n, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.Status == domain.NegotiationStatusActive {
		return nil
	}
	return domain.ErrInvalidTransition
}

// SetBestOffer records the derived latest-offer fields.
func (s *NegotiationStore) SetBestOffer(ctx context.Context, id string, amount float64, side domain.BidderType) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE negotiations SET best_offer_amount = $1, best_offer_side = $2 WHERE id = $3`,
		amount, string(side), id)
	if err != nil {
		return fmt.Errorf("postgres: set best offer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNegotiationNotFound
	}
	return nil
}

// CloseIf sets a terminal status only while the negotiation is still live.
// The WHERE clause on the live statuses is the atomic transition check.
func (s *NegotiationStore) CloseIf(ctx context.Context, id string, status domain.NegotiationStatus, closedBy, reason string, closedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE negotiations
		SET status = $1, closed_by = $2, closed_reason = $3, closed_at = $4
		WHERE id = $5 AND status IN ('created', 'active')`,
		string(status), closedBy, reason, closedAt, id)
	if err != nil {
		return false, fmt.Errorf("postgres: close negotiation %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish "already terminal" from "does not exist".
	if _, err := s.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ListOverdue returns live negotiations whose deadline passed before now.
func (s *NegotiationStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Negotiation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+negotiationSelectCols+` FROM negotiations
		WHERE status IN ('created', 'active') AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list overdue negotiations: %w", err)
	}
	defer rows.Close()

	ns, err := scanNegotiationRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan overdue negotiations: %w", err)
	}
	return ns, nil
}

// ListClosedBefore returns terminal negotiations closed before the cutoff.
func (s *NegotiationStore) ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Negotiation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+negotiationSelectCols+` FROM negotiations
		WHERE status IN ('accepted', 'rejected', 'expired') AND closed_at < $1
		ORDER BY closed_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed negotiations: %w", err)
	}
	defer rows.Close()

	ns, err := scanNegotiationRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed negotiations: %w", err)
	}
	return ns, nil
}

// Delete removes a negotiation row. Bids cascade.
func (s *NegotiationStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM negotiations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete negotiation %s: %w", id, err)
	}
	return nil
}

func scanNegotiation(scanner interface{ Scan(dest ...any) error }) (domain.Negotiation, error) {
	var n domain.Negotiation
	var status, side string

	err := scanner.Scan(
		&n.ID, &n.ProductID, &n.VendorID, &n.CustomerID, &n.Quantity, &status,
		&n.BestOfferAmount, &side, &n.ClosedBy, &n.ClosedReason,
		&n.CreatedAt, &n.ExpiresAt, &n.ClosedAt,
	)
	if err != nil {
		return domain.Negotiation{}, err
	}

	n.Status = domain.NegotiationStatus(status)
	n.BestOfferSide = domain.BidderType(side)
	return n, nil
}

func scanNegotiationRows(rows pgx.Rows) ([]domain.Negotiation, error) {
	var ns []domain.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, rows.Err()
}

// Compile-time interface check.
var _ domain.NegotiationStore = (*NegotiationStore)(nil)
