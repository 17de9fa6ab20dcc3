package auditsession

import (
	"context"
	"errors"
	"time"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const defaultCodeType = "qr"

// CodeResolver looks up what a scanned code points at
type CodeResolver interface {
	ResolveCode(ctx context.Context, code string) (*appaudit.CodeResolution, error)
}

// Ingestor folds scan events into the store and resolves new codes in the background
type Ingestor struct {
	store    *Store
	resolver CodeResolver
	tasks    *taskGroup
	timeout  time.Duration
	logger   *zap.Logger
}

func newIngestor(store *Store, resolver CodeResolver, tasks *taskGroup, timeout time.Duration, l *zap.Logger) *Ingestor {
	return &Ingestor{store: store, resolver: resolver, tasks: tasks, timeout: timeout, logger: l}
}

// Ingest records a decoded scan. It returns INVALID_STATE outside an active session
// and DECODE_ERROR for an empty code; every other problem is kept on the item.
func (i *Ingestor) Ingest(ctx context.Context, ev ScanEvent) error {
	code := asset.NormalizeCode(ev.Code)
	if code == "" {
		return shared.NewDomainError("DECODE_ERROR", "Scanned code is empty")
	}
	codeType := ev.CodeType
	if codeType == "" {
		codeType = defaultCodeType
	}

	var failure *Errored
	switch {
	case ev.DecodeError != nil:
		failure = &Errored{Reason: ev.DecodeError.Error()}
	case ev.Classification == ClassificationUnrecognized:
		failure = &Errored{Reason: "Code is not recognized"}
	}

	tok, resolve, err := i.store.admit(code, codeType, failure)
	if err != nil {
		return err
	}
	if resolve {
		i.tasks.Go(func(taskCtx context.Context) {
			i.resolve(taskCtx, tok, code)
		})
	}
	return nil
}

func (i *Ingestor) resolve(ctx context.Context, tok Token, code string) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	res, err := i.resolver.ResolveCode(ctx, code)
	if err != nil && errors.Is(err, context.Canceled) {
		// session restarted or ended
		return
	}
	payload := payloadFor(res, err)
	if e, ok := payload.(Errored); ok {
		logger.Enrich(ctx, i.logger).Debug("Code did not resolve",
			zap.String("code", code),
			zap.String("reason", e.Reason),
		)
	}
	if !i.store.applyResolution(tok, code, payload) {
		i.logger.Debug("Dropped stale resolution", zap.String("code", code), zap.Uint64("generation", tok.Generation))
	}
}

func payloadFor(res *appaudit.CodeResolution, err error) Payload {
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Errored{Reason: "Code not found"}
		}
		if de, ok := shared.AsDomainError(err); ok {
			return Errored{Reason: de.Message}
		}
		return Errored{Reason: err.Error()}
	}
	switch {
	case res == nil:
		return Errored{Reason: "Code not found"}
	case res.Type == asset.CodeTargetAsset && res.Asset != nil:
		return ResolvedAsset{Asset: *res.Asset}
	case res.Type == asset.CodeTargetKit && res.Kit != nil:
		return ResolvedKit{Kit: *res.Kit}
	default:
		return Errored{Reason: "Code is not linked to an asset or kit"}
	}
}
