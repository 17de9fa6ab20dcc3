package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxAttachments bounds the number of images stored with a completed audit
const MaxAttachments = 5

// SessionStatus represents the status of an audit session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// IsValid checks if the status is a valid SessionStatus
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusActive, SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of SessionStatus
func (s SessionStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the session can no longer change
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	if s == SessionStatusActive {
		return target == SessionStatusCompleted || target == SessionStatusCancelled
	}
	return false
}

// ExpectedAsset is one member of the expected set, fixed when the audit starts
type ExpectedAsset struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Valuation decimal.Decimal `json:"valuation"`
}

// Attachment is an image stored alongside a completed audit
type Attachment struct {
	ID             uuid.UUID
	AuditSessionID uuid.UUID
	Filename       string
	ContentType    string
	StorageKey     string
	Size           int64
	CreatedAt      time.Time
}

// AuditSession is the aggregate root for an asset audit
type AuditSession struct {
	shared.TenantAggregateRoot
	Name                 string
	TargetID             *uuid.UUID // originating entity, e.g. a booking
	TargetType           string
	ContextType          ContextType
	ContextName          string
	ContextRefID         *uuid.UUID
	IncludeDescendants   bool
	Status               SessionStatus
	ExpectedAssets       []ExpectedAsset
	ExpectedAssetCount   int
	FoundAssetCount      int
	MissingAssetCount    int
	UnexpectedAssetCount int
	CompletionNote       string
	CompletedAt          *time.Time
	CompletedBy          *uuid.UUID
	CancelledAt          *time.Time
	CancelReason         string
	Attachments          []Attachment
}

// NewAuditSession creates an active audit over an already resolved expected set
func NewAuditSession(tenantID uuid.UUID, name string, resolved ResolvedContext, expected []ExpectedAsset, createdBy *uuid.UUID) (*AuditSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Audit name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Audit name cannot exceed 200 characters")
	}
	if !resolved.Type.IsValid() {
		return nil, shared.NewDomainError("INVALID_CONTEXT_TYPE", "Invalid audit context type")
	}
	expected = dedupeExpected(expected)
	if len(expected) == 0 {
		return nil, shared.ErrEmptyContext
	}

	s := &AuditSession{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		ContextType:         resolved.Type,
		ContextName:         resolved.Name,
		ContextRefID:        resolved.RefID,
		IncludeDescendants:  resolved.IncludeDescendants,
		Status:              SessionStatusActive,
		ExpectedAssets:      expected,
		ExpectedAssetCount:  len(expected),
		MissingAssetCount:   len(expected),
		Attachments:         make([]Attachment, 0),
	}
	if createdBy != nil {
		s.SetCreatedBy(*createdBy)
	}
	s.AddDomainEvent(NewAuditSessionStartedEvent(s))
	return s, nil
}

// SetTarget links the audit to the entity that triggered it
func (s *AuditSession) SetTarget(targetType string, targetID uuid.UUID) {
	s.TargetType = targetType
	s.TargetID = &targetID
}

// IsActive returns true while scans may be recorded
func (s *AuditSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// EnsureActive returns an INVALID_STATE error unless the audit is active
func (s *AuditSession) EnsureActive() error {
	if !s.IsActive() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Audit is %s", strings.ToLower(string(s.Status))))
	}
	return nil
}

// IsExpected reports whether the asset belongs to the expected set
func (s *AuditSession) IsExpected(assetID uuid.UUID) bool {
	for _, e := range s.ExpectedAssets {
		if e.ID == assetID {
			return true
		}
	}
	return false
}

// ExpectedIDs returns the expected asset ids as a set
func (s *AuditSession) ExpectedIDs() map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(s.ExpectedAssets))
	for _, e := range s.ExpectedAssets {
		ids[e.ID] = struct{}{}
	}
	return ids
}

// ApplyCounts stores freshly recomputed counters
func (s *AuditSession) ApplyCounts(c Counts) error {
	if err := s.EnsureActive(); err != nil {
		return err
	}
	s.applyCounts(c)
	return nil
}

func (s *AuditSession) applyCounts(c Counts) {
	s.ExpectedAssetCount = c.Expected
	s.FoundAssetCount = c.Found
	s.MissingAssetCount = c.Missing
	s.UnexpectedAssetCount = c.Unexpected
	s.Touch()
}

// Counts returns the current durable counters
func (s *AuditSession) Counts() Counts {
	return Counts{
		Expected:   s.ExpectedAssetCount,
		Found:      s.FoundAssetCount,
		Missing:    s.MissingAssetCount,
		Unexpected: s.UnexpectedAssetCount,
	}
}

// Complete freezes the counters and closes the audit
func (s *AuditSession) Complete(c Counts, note string, attachments []Attachment, completedBy *uuid.UUID) error {
	if !s.Status.CanTransitionTo(SessionStatusCompleted) {
		return shared.NewDomainError("INVALID_STATE", "Can only complete an active audit")
	}
	if len(attachments) > MaxAttachments {
		return shared.NewDomainError("TOO_MANY_ATTACHMENTS", fmt.Sprintf("At most %d attachments are allowed", MaxAttachments))
	}
	if c.Found+c.Missing != c.Expected {
		return shared.NewDomainError("INVALID_COUNTS", "Found and missing counts must add up to the expected count")
	}

	now := time.Now()
	s.applyCounts(c)
	s.CompletionNote = strings.TrimSpace(note)
	s.CompletedAt = &now
	s.CompletedBy = completedBy
	for i := range attachments {
		attachments[i].AuditSessionID = s.ID
	}
	s.Attachments = append(s.Attachments, attachments...)
	s.Status = SessionStatusCompleted
	s.IncrementVersion()

	s.AddDomainEvent(NewAuditSessionCompletedEvent(s))
	return nil
}

// Cancel abandons the audit without freezing new counters
func (s *AuditSession) Cancel(reason string) error {
	if !s.Status.CanTransitionTo(SessionStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", "Can only cancel an active audit")
	}
	now := time.Now()
	s.Status = SessionStatusCancelled
	s.CancelledAt = &now
	s.CancelReason = strings.TrimSpace(reason)
	s.Touch()
	s.IncrementVersion()

	s.AddDomainEvent(NewAuditSessionCancelledEvent(s))
	return nil
}

// Progress returns the found percentage (0-100)
func (s *AuditSession) Progress() float64 {
	if s.ExpectedAssetCount == 0 {
		return 0
	}
	return float64(s.FoundAssetCount) / float64(s.ExpectedAssetCount) * 100
}

func dedupeExpected(in []ExpectedAsset) []ExpectedAsset {
	seen := make(map[uuid.UUID]struct{}, len(in))
	out := make([]ExpectedAsset, 0, len(in))
	for _, e := range in {
		if e.ID == uuid.Nil {
			continue
		}
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}
