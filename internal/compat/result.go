package compat

import (
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

// Status is the result of a load attempt.
type Status int

// load statuses.
const (
	// Failed means the mod could not be decoded, rewritten or loaded.
	Failed Status = iota
	// Rejected means the mod still has broken references after rewriting.
	Rejected
	// Loaded means the mod was loaded without changes.
	Loaded
	// LoadedWithChanges means the mod was rewritten and loaded.
	LoadedWithChanges
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Failed:
		return "failed"
	case Rejected:
		return "rejected"
	case Loaded:
		return "loaded"
	case LoadedWithChanges:
		return "loaded with changes"
	default:
		return "unknown"
	}
}

// Result describes a load attempt.
type Result struct {
	Mod    string
	Status Status
	Err    error

	Module  *module.Module   // decoded and possibly rewritten module, nil if decoding failed
	Outcome *rewrite.Outcome // nil if the rewrite pass did not complete

	PlatformChanged   bool // mod was built for the other game build
	ReferencesSwapped bool // assembly reference table was switched to the target build
	Cached            bool // module was taken from the rewrite cache
}

// Changed returns whether the module differs from the input binary.
func (r *Result) Changed() bool {
	if r.ReferencesSwapped {
		return true
	}
	return r.Outcome != nil && r.Outcome.Changed
}

// IsLoaded returns whether the mod was handed to the process loader.
func (r *Result) IsLoaded() bool {
	return r.Status == Loaded || r.Status == LoadedWithChanges
}
