package audit

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScannedAsset is a resolved asset observed during an audit
type ScannedAsset struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Valuation decimal.Decimal `json:"valuation"`
}

// Counts are the four summary counters of an audit
type Counts struct {
	Expected   int `json:"expected"`
	Found      int `json:"found"`
	Missing    int `json:"missing"`
	Unexpected int `json:"unexpected"`
}

// Reconciliation partitions expected and scanned assets.
// Found and Missing keep the expected order; Unexpected keeps first-scan order.
type Reconciliation struct {
	Found        []ExpectedAsset
	Missing      []ExpectedAsset
	Unexpected   []ScannedAsset
	Counts       Counts
	MissingValue decimal.Decimal
}

// ChecklistEntry is one row of the operator's expected-asset list
type ChecklistEntry struct {
	Asset ExpectedAsset
	Found bool
}

// Reconcile classifies scanned assets against the expected set.
// Duplicate ids on either side are counted once.
func Reconcile(expected []ExpectedAsset, scanned []ScannedAsset) Reconciliation {
	scannedIDs := make(map[uuid.UUID]struct{}, len(scanned))
	for _, s := range scanned {
		scannedIDs[s.ID] = struct{}{}
	}

	r := Reconciliation{
		Found:        make([]ExpectedAsset, 0),
		Missing:      make([]ExpectedAsset, 0),
		Unexpected:   make([]ScannedAsset, 0),
		MissingValue: decimal.Zero,
	}

	expectedIDs := make(map[uuid.UUID]struct{}, len(expected))
	for _, e := range expected {
		if _, dup := expectedIDs[e.ID]; dup {
			continue
		}
		expectedIDs[e.ID] = struct{}{}
		if _, ok := scannedIDs[e.ID]; ok {
			r.Found = append(r.Found, e)
		} else {
			r.Missing = append(r.Missing, e)
			r.MissingValue = r.MissingValue.Add(e.Valuation)
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(scanned))
	for _, s := range scanned {
		if _, ok := expectedIDs[s.ID]; ok {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		r.Unexpected = append(r.Unexpected, s)
	}

	r.Counts = Counts{
		Expected:   len(expectedIDs),
		Found:      len(r.Found),
		Missing:    len(r.Missing),
		Unexpected: len(r.Unexpected),
	}
	return r
}

// Checklist lists found assets first, then missing ones
func (r Reconciliation) Checklist() []ChecklistEntry {
	out := make([]ChecklistEntry, 0, len(r.Found)+len(r.Missing))
	for _, a := range r.Found {
		out = append(out, ChecklistEntry{Asset: a, Found: true})
	}
	for _, a := range r.Missing {
		out = append(out, ChecklistEntry{Asset: a})
	}
	return out
}
