package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

const defaultRetryDelay = 100 * time.Millisecond

// SyncOptions tunes a Synchronizer.
type SyncOptions struct {
	// Attempts is the number of times a whole pass is tried. Values below 2
	// disable retries.
	Attempts int
	// RetryDelay is the initial backoff between attempts.
	RetryDelay time.Duration
	// FetchConcurrency caps in-flight record fetches. Zero means one
	// goroutine per record.
	FetchConcurrency int
}

// Synchronizer runs synchronization passes: count, fetch every record
// concurrently, keep the ones owned by the identity and convert amounts.
type Synchronizer struct {
	converter ports.UnitConverter
	opts      SyncOptions
	log       zerolog.Logger
}

// NewSynchronizer returns a Synchronizer. converter may be nil, in which case
// amounts are shown in base units.
func NewSynchronizer(converter ports.UnitConverter, opts SyncOptions, log zerolog.Logger) *Synchronizer {
	if opts.Attempts > 1 && opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	return &Synchronizer{converter: converter, opts: opts, log: log}
}

// Synchronize returns the display rows of the records owned by identity in
// ascending index order. Either every record is fetched or the pass fails as
// a whole; a failed attempt never contributes rows to a later one.
func (s *Synchronizer) Synchronize(ctx context.Context, store ports.RecordStore, identity domain.Address) ([]domain.DisplayRow, error) {
	if identity.IsZero() {
		return nil, domain.ErrNoWallet
	}
	if store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if s.opts.Attempts <= 1 {
		return s.pass(ctx, store, identity)
	}

	r := retry.New[[]domain.DisplayRow](retry.Config{
		MaxAttempts:   s.opts.Attempts,
		InitialDelay:  s.opts.RetryDelay,
		BackoffPolicy: retry.BackoffExponential,
	})

	var lastErr error
	attempt := 0
	rows, err := r.Do(ctx, func(ctx context.Context) ([]domain.DisplayRow, error) {
		attempt++
		rows, err := s.pass(ctx, store, identity)
		if err != nil {
			lastErr = err
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("synchronization pass failed")
		}
		return rows, err
	})
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return rows, nil
}

func (s *Synchronizer) pass(ctx context.Context, store ports.RecordStore, identity domain.Address) ([]domain.DisplayRow, error) {
	count, err := store.RecordCount(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return nil, fmt.Errorf("record count: %w", err)
		}
		return nil, fmt.Errorf("record count: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if count <= 0 {
		return []domain.DisplayRow{}, nil
	}

	records, err := s.fetchAll(ctx, store, count)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.DisplayRow, 0, len(records))
	for _, rec := range records {
		if !rec.OwnedBy(identity) {
			continue
		}
		amount, ok := s.displayAmount(rec)
		if !ok {
			continue
		}
		rows = append(rows, domain.DisplayRow{
			Index:        rec.Index,
			Counterparty: rec.Counterparty.Checksum(),
			Amount:       amount,
			Term:         rec.Term,
			InterestRate: rec.InterestRate,
			Issued:       rec.Issued,
		})
	}

	s.log.Debug().
		Int("count", count).
		Int("owned", len(rows)).
		Str("account", identity.String()).
		Msg("synchronization pass complete")

	return rows, nil
}

// fetchAll issues one fetch per index in 1..count. Every fetch is started even
// if another fails, so the error reports each failed index.
func (s *Synchronizer) fetchAll(ctx context.Context, store ports.RecordStore, count int) ([]domain.LoanRecord, error) {
	records := make([]domain.LoanRecord, count)
	errs := make([]error, count)

	var g errgroup.Group
	if s.opts.FetchConcurrency > 0 {
		g.SetLimit(s.opts.FetchConcurrency)
	}
	for i := 1; i <= count; i++ {
		g.Go(func() error {
			rec, err := store.FetchRecord(ctx, i)
			if err != nil {
				errs[i-1] = err
				return err
			}
			rec.Index = i
			records[i-1] = rec
			return nil
		})
	}
	if g.Wait() == nil {
		return records, nil
	}

	pfe := &domain.PartialFetchError{Count: count, Failed: make(map[int]error)}
	for i, err := range errs {
		if err != nil {
			pfe.Failed[i+1] = err
		}
	}
	return nil, pfe
}

// displayAmount converts a record's amount. Malformed amounts drop the row;
// other conversion failures keep it with the raw base-unit value.
func (s *Synchronizer) displayAmount(rec domain.LoanRecord) (domain.DisplayAmount, bool) {
	if rec.Amount == nil || rec.Amount.Sign() < 0 {
		s.log.Warn().Int("index", rec.Index).Msg("dropping loan with malformed amount")
		return domain.DisplayAmount{}, false
	}
	if s.converter == nil {
		return domain.DisplayAmount{Value: rec.Amount.String(), Raw: true}, true
	}

	v, err := s.converter.ToDisplay(rec.Amount)
	switch {
	case err == nil:
		return domain.DisplayAmount{Value: v}, true
	case errors.Is(err, domain.ErrMalformedAmount):
		s.log.Warn().Err(err).Int("index", rec.Index).Msg("dropping loan with malformed amount")
		return domain.DisplayAmount{}, false
	default:
		s.log.Warn().Err(err).Int("index", rec.Index).Msg("amount conversion failed, showing base units")
		return domain.DisplayAmount{Value: rec.Amount.String(), Raw: true}, true
	}
}
