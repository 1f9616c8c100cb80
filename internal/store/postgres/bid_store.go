package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL. The table is
// append-only; there is no update path, and deletion happens only through
// the retention archiver.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a BidStore backed by the given pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

const bidSelectCols = `id, negotiation_id, bidder_type, bidder_id, amount,
	message, language, translated_message, created_at`

// Append inserts a new bid.
func (s *BidStore) Append(ctx context.Context, b domain.Bid) error {
	const query = `
		INSERT INTO bids (
			id, negotiation_id, bidder_type, bidder_id, amount,
			message, language, translated_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		b.ID, b.NegotiationID, string(b.BidderType), b.BidderID, b.Amount,
		b.Message, b.Language, b.TranslatedMessage, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append bid %s: %w", b.ID, err)
	}
	return nil
}

// ListByNegotiation returns the negotiation's bids in insertion order.
func (s *BidStore) ListByNegotiation(ctx context.Context, negotiationID string, opts domain.ListOpts) ([]domain.Bid, error) {
	query := `SELECT ` + bidSelectCols + ` FROM bids WHERE negotiation_id = $1 ORDER BY seq`
	args := []any{negotiationID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids for %s: %w", negotiationID, err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bids for %s: %w", negotiationID, err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// Latest returns the most recent bid for the negotiation.
func (s *BidStore) Latest(ctx context.Context, negotiationID string) (domain.Bid, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bidSelectCols+` FROM bids WHERE negotiation_id = $1 ORDER BY seq DESC LIMIT 1`,
		negotiationID)

	b, err := scanBid(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bid{}, domain.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("postgres: latest bid for %s: %w", negotiationID, err)
	}
	return b, nil
}

// DeleteByNegotiation removes all bids of a negotiation. Used by the
// retention archiver after a successful export.
func (s *BidStore) DeleteByNegotiation(ctx context.Context, negotiationID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM bids WHERE negotiation_id = $1`, negotiationID); err != nil {
		return fmt.Errorf("postgres: delete bids for %s: %w", negotiationID, err)
	}
	return nil
}

func scanBid(scanner interface{ Scan(dest ...any) error }) (domain.Bid, error) {
	var b domain.Bid
	var bidderType string

	err := scanner.Scan(
		&b.ID, &b.NegotiationID, &bidderType, &b.BidderID, &b.Amount,
		&b.Message, &b.Language, &b.TranslatedMessage, &b.CreatedAt,
	)
	if err != nil {
		return domain.Bid{}, err
	}

	b.BidderType = domain.BidderType(bidderType)
	return b, nil
}

// Compile-time interface check.
var _ domain.BidStore = (*BidStore)(nil)
