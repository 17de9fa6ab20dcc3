package auditsession

import (
	"context"
	"errors"
	"sync"
	"time"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScanWriter submits one durable scan write
type ScanWriter interface {
	RecordScan(ctx context.Context, sessionID uuid.UUID, req appaudit.RecordScanRequest) (*appaudit.RecordScanResponse, error)
}

// Synchronizer writes every resolved asset of the session to the durable store,
// keeping at most one write in flight per asset.
type Synchronizer struct {
	store       *Store
	writer      ScanWriter
	tasks       *taskGroup
	maxAttempts int
	timeout     time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	failures map[uuid.UUID]int
}

func newSynchronizer(store *Store, writer ScanWriter, tasks *taskGroup, maxAttempts int, timeout time.Duration, l *zap.Logger) *Synchronizer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Synchronizer{
		store:       store,
		writer:      writer,
		tasks:       tasks,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		logger:      l,
		failures:    make(map[uuid.UUID]int),
	}
}

// onChange is the store listener
func (s *Synchronizer) onChange(Token) {
	s.pass()
}

// pass claims eligible assets and starts their writes; it returns the number started
func (s *Synchronizer) pass() int {
	claims := s.store.claimEligible()
	for _, c := range claims {
		s.tasks.Go(func(ctx context.Context) {
			s.write(ctx, c)
		})
	}
	return len(claims)
}

func (s *Synchronizer) write(ctx context.Context, c claim) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.writer.RecordScan(ctx, c.Token.SessionID, appaudit.RecordScanRequest{
		QRID:       c.Code,
		AssetID:    c.AssetID,
		IsExpected: c.IsExpected,
	})
	l := logger.Enrich(ctx, s.logger).With(
		zap.String("audit_session_id", c.Token.SessionID.String()),
		zap.String("asset_id", c.AssetID.String()),
	)
	if err == nil {
		s.resetFailures(c.AssetID)
		s.store.settle(c.Token, c.AssetID)
		if resp != nil && resp.Duplicate {
			l.Debug("Scan already persisted", zap.String("scan_id", resp.ScanID.String()))
		}
		return
	}

	if errors.Is(err, context.Canceled) {
		s.store.release(c.Token, c.AssetID, false)
		return
	}

	// a closed audit or an unknown asset will never accept the write
	rejected := errors.Is(err, shared.ErrInvalidState) || errors.Is(err, shared.ErrNotFound)
	attempts := s.recordFailure(c.AssetID)
	park := rejected || attempts >= s.maxAttempts
	if !s.store.release(c.Token, c.AssetID, park) {
		return
	}
	if park {
		l.Error("Scan write parked",
			zap.Int("attempts", attempts),
			zap.Bool("rejected", rejected),
			zap.Error(err),
		)
		return
	}
	l.Warn("Scan write failed, will retry", zap.Int("attempts", attempts), zap.Error(err))
}

// Flush waits until every resolvable scan has either been written or parked
func (s *Synchronizer) Flush(ctx context.Context) error {
	for {
		if err := s.tasks.Wait(ctx); err != nil {
			return err
		}
		if s.pass() == 0 {
			return s.tasks.Wait(ctx)
		}
	}
}

// Retry clears the failure history of parked assets and submits them again
func (s *Synchronizer) Retry() int {
	s.mu.Lock()
	s.failures = make(map[uuid.UUID]int)
	s.mu.Unlock()
	return s.store.unpark()
}

func (s *Synchronizer) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[uuid.UUID]int)
}

func (s *Synchronizer) recordFailure(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id]++
	return s.failures[id]
}

func (s *Synchronizer) resetFailures(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, id)
}
