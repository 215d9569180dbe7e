package rewrite

import (
	"github.com/yinxiangshi/modrewrite/internal/module"
)

// Rule is a rewrite strategy. Rules hold only their matching criteria and are
// reused for every module, all per-module state is passed in the Context.
// A rule implements at least one of TypeRule, InstructionRule and ModuleRule.
type Rule interface {
	// Phrase returns the default description of the rewrites the rule applies.
	Phrase() string

	// Criteria returns the matching criteria and targets of the rule. Two rules
	// of the same type with equal criteria rewrite modules the same way.
	Criteria() string
}

// TypeRule rewrites type references.
type TypeRule interface {
	Rule

	// HandleType returns a replacement for the type reference and whether it applies.
	// The reference itself must not be modified.
	HandleType(ctx *Context, ref *module.TypeReference) (*module.TypeReference, bool)
}

// InstructionRule rewrites instructions that reference fields and methods.
type InstructionRule interface {
	Rule

	// HandleInstruction rewrites the instruction and returns whether it changed
	// anything. The rule may replace the operand, replace the instruction or
	// splice instructions around it using the list. An error aborts the pass.
	HandleInstruction(ctx *Context, list *module.InstructionList, ins *module.Instruction) (bool, error)
}

// ModuleRule rewrites module level metadata.
type ModuleRule interface {
	Rule

	// HandleModule rewrites the module metadata and returns whether it changed anything.
	HandleModule(ctx *Context) bool
}
