// Package archive moves closed negotiations out of the primary store and
// into blob cold storage once they exceed the retention window.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/uday68/VyaparMitra-sub003/internal/domain"
)

const exportBatchSize = 100

// Transcript is the exported form of a finished negotiation, written as one
// JSON object per negotiation.
type Transcript struct {
	Negotiation domain.Negotiation `json:"negotiation"`
	Bids        []domain.Bid       `json:"bids"`
	ArchivedAt  time.Time          `json:"archivedAt"`
}

// Archiver exports closed negotiations older than the retention window to
// blob storage, then deletes them from the primary store. Deletion happens
// only after a successful export, so a failed run leaves the rows in place
// for the next pass.
type Archiver struct {
	negotiations domain.NegotiationStore
	bids         domain.BidStore
	writer       domain.BlobWriter
	retention    time.Duration
	interval     time.Duration
	logger       *slog.Logger

	now func() time.Time
}

// New creates an Archiver. retention controls how long closed negotiations
// stay queryable; interval controls how often a run happens.
func New(negotiations domain.NegotiationStore, bids domain.BidStore, writer domain.BlobWriter, retention, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		negotiations: negotiations,
		bids:         bids,
		writer:       writer,
		retention:    retention,
		interval:     interval,
		logger:       logger.With(slog.String("component", "archiver")),
		now:          time.Now,
	}
}

// Run executes archive runs on a ticker until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver started",
		slog.Duration("retention", a.retention),
		slog.Duration("interval", a.interval),
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			archived, err := a.RunOnce(ctx)
			if err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
				continue
			}
			if archived > 0 {
				a.logger.Info("archive run complete", slog.Int("archived", archived))
			}
		}
	}
}

// RunOnce performs a single archive pass and returns the number of
// negotiations exported. Failures on individual negotiations are logged and
// skipped so one bad record cannot stall the whole run.
func (a *Archiver) RunOnce(ctx context.Context) (int, error) {
	cutoff := a.now().Add(-a.retention)

	closed, err := a.negotiations.ListClosedBefore(ctx, cutoff, exportBatchSize)
	if err != nil {
		return 0, fmt.Errorf("archive: list closed negotiations: %w", err)
	}

	archived := 0
	for _, n := range closed {
		if err := a.export(ctx, n); err != nil {
			a.logger.Error("export failed",
				slog.String("negotiation_id", n.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		archived++
	}
	return archived, nil
}

// export writes one transcript to blob storage and removes the negotiation
// and its bids from the primary store.
func (a *Archiver) export(ctx context.Context, n domain.Negotiation) error {
	bids, err := a.bids.ListByNegotiation(ctx, n.ID, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("archive: list bids for %s: %w", n.ID, err)
	}

	transcript := Transcript{
		Negotiation: n,
		Bids:        bids,
		ArchivedAt:  a.now().UTC(),
	}

	payload, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("archive: marshal transcript %s: %w", n.ID, err)
	}

	path := ObjectPath(n)
	if err := a.writer.Put(ctx, path, bytes.NewReader(payload), "application/json"); err != nil {
		return fmt.Errorf("archive: upload transcript %s: %w", n.ID, err)
	}

	if err := a.bids.DeleteByNegotiation(ctx, n.ID); err != nil {
		return fmt.Errorf("archive: delete bids for %s: %w", n.ID, err)
	}
	if err := a.negotiations.Delete(ctx, n.ID); err != nil {
		return fmt.Errorf("archive: delete negotiation %s: %w", n.ID, err)
	}

	a.logger.Debug("negotiation archived",
		slog.String("negotiation_id", n.ID),
		slog.String("path", path),
	)
	return nil
}

// ObjectPath returns the blob key for a negotiation's transcript, keyed by
// close date so exports shard naturally by day.
func ObjectPath(n domain.Negotiation) string {
	closedAt := n.CreatedAt
	if n.ClosedAt != nil {
		closedAt = *n.ClosedAt
	}
	return fmt.Sprintf("negotiations/%s/%s.json", closedAt.UTC().Format("2006/01/02"), n.ID)
}
