package reconcile

import "github.com/alexisbeaulieu97/ccreconcile/internal/schema"

// VerdictKind classifies a have/want comparison.
type VerdictKind int

const (
	VerdictAbsent VerdictKind = iota
	VerdictEqual
	VerdictDiffers
	VerdictUnsupported
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictAbsent:
		return "absent"
	case VerdictEqual:
		return "equal"
	case VerdictDiffers:
		return "differs"
	case VerdictUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// Verdict is the outcome of the diff engine.
type Verdict struct {
	Kind VerdictKind
	// Changed lists differing top-level fields, sorted. Set for Differs.
	Changed []string
	// Field names the immutable field a change was requested for. Set for Unsupported.
	Field string
	// Patch is the minimal update payload in spec field names. Set for Differs.
	Patch schema.Record
}

// RequiresWrite reports whether the verdict leads to a create or update.
func (v Verdict) RequiresWrite() bool {
	return v.Kind == VerdictAbsent || v.Kind == VerdictDiffers
}
