package rules

import (
	"fmt"

	"github.com/retroenv/retrogolib/set"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

var (
	_ rewrite.TypeRule        = (*TypeFinder)(nil)
	_ rewrite.InstructionRule = (*MemberFinder)(nil)
)

// TypeFinder flags references to any of the given types. It never changes the module.
type TypeFinder struct {
	phrase string
	kind   rewrite.FlagKind
	types  set.Set[string]
}

// NewTypeFinder returns a finder for the types with the given full names.
func NewTypeFinder(phrase string, kind rewrite.FlagKind, fullNames ...string) *TypeFinder {
	types := set.New[string]()
	for _, name := range fullNames {
		types.Add(name)
	}
	return &TypeFinder{
		phrase: phrase,
		kind:   kind,
		types:  types,
	}
}

// Phrase implements rewrite.Rule.
func (r *TypeFinder) Phrase() string {
	return r.phrase
}

// Criteria implements rewrite.Rule.
func (r *TypeFinder) Criteria() string {
	return fmt.Sprintf("%s %s %s", r.phrase, r.kind, sortedCriteria(r.types))
}

// HandleType implements rewrite.TypeRule.
func (r *TypeFinder) HandleType(ctx *rewrite.Context, ref *module.TypeReference) (*module.TypeReference, bool) {
	if ref.Kind == module.TypeNormal && r.types.Contains(ref.FullName()) {
		ctx.Flag(r.kind, r.phrase)
	}
	return nil, false
}

// MemberFinder flags references to named fields or methods of a type.
// It never changes the module.
type MemberFinder struct {
	phrase        string
	kind          rewrite.FlagKind
	declaringType string
	names         set.Set[string]
	all           bool
}

// NewMemberFinder returns a finder for members of the given type. Without
// names every member of the type is flagged.
func NewMemberFinder(phrase string, kind rewrite.FlagKind, declaringType string, names ...string) *MemberFinder {
	members := set.New[string]()
	for _, name := range names {
		members.Add(name)
	}
	return &MemberFinder{
		phrase:        phrase,
		kind:          kind,
		declaringType: declaringType,
		names:         members,
		all:           len(names) == 0,
	}
}

// Phrase implements rewrite.Rule.
func (r *MemberFinder) Phrase() string {
	return r.phrase
}

// Criteria implements rewrite.Rule.
func (r *MemberFinder) Criteria() string {
	return fmt.Sprintf("%s %s %s::%s all=%t", r.phrase, r.kind, r.declaringType, sortedCriteria(r.names), r.all)
}

// HandleInstruction implements rewrite.InstructionRule.
func (r *MemberFinder) HandleInstruction(ctx *rewrite.Context, _ *module.InstructionList, ins *module.Instruction) (bool, error) {
	var declaringType *module.TypeReference
	var name string
	switch ref := ins.Operand.(type) {
	case *module.FieldReference:
		declaringType, name = ref.DeclaringType, ref.Name
	case *module.MethodReference:
		declaringType, name = ref.DeclaringType, ref.Name
	default:
		return false, nil
	}

	if declaringType.Element().FullName() != r.declaringType {
		return false, nil
	}
	if r.all || r.names.Contains(name) {
		ctx.Flag(r.kind, r.phrase)
	}
	return false, nil
}
