package audit

import (
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ContextType describes how the expected set of an audit is derived
type ContextType string

const (
	ContextTypeLocation  ContextType = "LOCATION"
	ContextTypeKit       ContextType = "KIT"
	ContextTypeUser      ContextType = "USER"
	ContextTypeSelection ContextType = "SELECTION"
)

// IsValid checks if the context type is known
func (t ContextType) IsValid() bool {
	switch t {
	case ContextTypeLocation, ContextTypeKit, ContextTypeUser, ContextTypeSelection:
		return true
	}
	return false
}

// String returns the string representation of ContextType
func (t ContextType) String() string {
	return string(t)
}

// ContextDescriptor is the operator's request for an expected set
type ContextDescriptor struct {
	Type               ContextType
	ID                 uuid.UUID // location, kit or custodian id; unused for selections
	IncludeDescendants bool      // location only
	AssetIDs           []uuid.UUID
}

// Validate checks that the descriptor carries what its type needs
func (d ContextDescriptor) Validate() error {
	if !d.Type.IsValid() {
		return shared.NewDomainError("INVALID_CONTEXT_TYPE", "Context type must be one of LOCATION, KIT, USER, SELECTION")
	}
	if d.Type == ContextTypeSelection {
		if len(d.AssetIDs) == 0 {
			return shared.NewDomainError("EMPTY_CONTEXT", "Selection does not contain any assets")
		}
		return nil
	}
	if d.ID == uuid.Nil {
		return shared.NewDomainError("INVALID_CONTEXT_ID", "Context id is required")
	}
	return nil
}

// ResolvedContext is the outcome of resolving a descriptor against the asset store
type ResolvedContext struct {
	Type               ContextType
	Name               string
	RefID              *uuid.UUID
	IncludeDescendants bool
	AssetIDs           []uuid.UUID
}
