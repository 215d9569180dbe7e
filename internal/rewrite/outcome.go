package rewrite

import (
	"strings"

	"github.com/yinxiangshi/modrewrite/internal/symbols"
)

// ReferenceKind is the kind of an unresolved reference.
type ReferenceKind string

// reference kinds.
const (
	TypeReference   ReferenceKind = "type"
	FieldReference  ReferenceKind = "field"
	MethodReference ReferenceKind = "method"
)

// Unresolved is a reference that no rule could fix.
type Unresolved struct {
	Kind      ReferenceKind
	Reference string   // full name of the reference
	Location  string   // full name of the member that contains the reference
	Attempted []string // phrases of the rules that were offered the reference
}

// String returns a diagnostic description of the reference.
func (u Unresolved) String() string {
	var sb strings.Builder
	sb.WriteString(string(u.Kind))
	sb.WriteByte(' ')
	sb.WriteString(u.Reference)
	if u.Location != "" {
		sb.WriteString(" (in ")
		sb.WriteString(u.Location)
		sb.WriteByte(')')
	}
	if len(u.Attempted) > 0 {
		sb.WriteString(" [rewrite attempts: ")
		sb.WriteString(strings.Join(u.Attempted, "; "))
		sb.WriteByte(']')
	}
	return sb.String()
}

// FlagKind is the severity of a detected usage.
type FlagKind string

// flag kinds.
const (
	// FlagWarning marks a usage that is logged but does not prevent loading.
	FlagWarning FlagKind = "warning"
	// FlagNotCompatible marks a usage that makes the mod incompatible.
	FlagNotCompatible FlagKind = "not compatible"
)

// Flag is a usage detected by a finder rule.
type Flag struct {
	Kind   FlagKind
	Phrase string
}

// Outcome is the result of one rewrite pass over a module.
type Outcome struct {
	Changed    bool
	Phrases    []string     // distinct descriptions of the applied rewrites in first-applied order
	Unresolved []Unresolved // broken references in order of first appearance
	Flags      []Flag       // distinct detected usages
}

// Failed returns whether the module can not be loaded: a reference is still
// broken or a finder marked a usage as not compatible.
func (o *Outcome) Failed() bool {
	if len(o.Unresolved) > 0 {
		return true
	}
	for _, flag := range o.Flags {
		if flag.Kind == FlagNotCompatible {
			return true
		}
	}
	return false
}

// Summary returns the phrases as a single diagnostic line.
func (o *Outcome) Summary() string {
	return strings.Join(o.Phrases, ", ")
}

// recorder collects the outcome while a pass runs.
type recorder struct {
	changed    bool
	phrases    *symbols.OrderedSet[string]
	unresolved *symbols.Manager[Unresolved]
	flags      *symbols.OrderedSet[Flag]
}

func newRecorder() *recorder {
	return &recorder{
		phrases:    symbols.NewOrderedSet[string](),
		unresolved: symbols.New[Unresolved](),
		flags:      symbols.NewOrderedSet[Flag](),
	}
}

func (r *recorder) addUnresolved(u Unresolved) {
	// only the first appearance of a reference is kept
	_ = r.unresolved.Add(string(u.Kind)+" "+u.Reference, u)
}

func (r *recorder) outcome() *Outcome {
	o := &Outcome{
		Changed: r.changed,
		Phrases: r.phrases.Items(),
		Flags:   r.flags.Items(),
	}
	for _, key := range r.unresolved.Keys() {
		u, _ := r.unresolved.Get(key)
		o.Unresolved = append(o.Unresolved, u)
	}
	return o
}
