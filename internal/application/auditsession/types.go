package auditsession

import (
	"time"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/google/uuid"
)

// Status is the lifecycle state of the engine
type Status string

const (
	StatusUninitialized Status = "UNINITIALIZED"
	StatusActive        Status = "ACTIVE"
	StatusCompleted     Status = "COMPLETED"
)

// Token identifies one incarnation of a session. Starting or ending a session
// bumps the generation, invalidating tokens held by in-flight tasks.
type Token struct {
	SessionID  uuid.UUID
	Generation uint64
}

// SessionInfo is the identity of the audit being worked on
type SessionInfo struct {
	ID          uuid.UUID
	Name        string
	ContextType audit.ContextType
	ContextName string
}

// PriorScan is a durable scan replayed when a session is resumed
type PriorScan struct {
	ScanID    uuid.UUID
	Code      string
	Asset     asset.Summary
	ScannedAt time.Time
}

// Classification is the scanner's guess about what a code points at
type Classification string

const (
	ClassificationAsset        Classification = "asset"
	ClassificationKit          Classification = "kit"
	ClassificationUnrecognized Classification = "unrecognized"
)

// ScanEvent is one decoded code handed over by the scanner
type ScanEvent struct {
	Code           string
	CodeType       string // e.g. "qr", "barcode"
	DecodeError    error
	Classification Classification
}

// Payload is the resolved content of a scanned item: one of Unresolved,
// ResolvedAsset, ResolvedKit or Errored.
type Payload interface {
	isPayload()
}

// Unresolved marks an item whose lookup is still in flight
type Unresolved struct{}

// ResolvedAsset is an item that points at an asset
type ResolvedAsset struct {
	Asset asset.Summary
}

// ResolvedKit is an item that points at a kit. Kits are shown but never counted or persisted.
type ResolvedKit struct {
	Kit appaudit.KitSummary
}

// Errored is an item that could not be decoded or resolved
type Errored struct {
	Reason string
}

func (Unresolved) isPayload()    {}
func (ResolvedAsset) isPayload() {}
func (ResolvedKit) isPayload()   {}
func (Errored) isPayload()       {}

// ScannedItem is one distinct code seen during the session
type ScannedItem struct {
	Code      string
	CodeType  string
	Payload   Payload
	ScannedAt time.Time
}

// AssetID returns the asset id for resolved asset items
func (i ScannedItem) AssetID() (uuid.UUID, bool) {
	if a, ok := i.Payload.(ResolvedAsset); ok {
		return a.Asset.ID, true
	}
	return uuid.Nil, false
}

// Snapshot is an immutable view of the store
type Snapshot struct {
	Token     Token
	Status    Status
	Session   SessionInfo
	Expected  []audit.ExpectedAsset
	Items     []ScannedItem // first-scan order
	Pending   []uuid.UUID
	Persisted []uuid.UUID
	Parked    []uuid.UUID
	// Counts are live while active and frozen at completion
	Counts audit.Counts
}

// Item returns the item scanned under code
func (s Snapshot) Item(code string) (ScannedItem, bool) {
	for _, it := range s.Items {
		if it.Code == code {
			return it, true
		}
	}
	return ScannedItem{}, false
}

// Listener is notified after every store mutation with the token current at that time
type Listener func(Token)
