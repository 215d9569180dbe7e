package rules

import (
	"fmt"

	"github.com/retroenv/retrogolib/set"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

var (
	_ rewrite.InstructionRule = (*FieldSubstitution)(nil)
	_ rewrite.InstructionRule = (*FieldToPropertyPromotion)(nil)
)

// FieldSubstitution replaces a broken field reference with a field of another type.
type FieldSubstitution struct {
	fromType  string
	fromField string
	to        *module.FieldReference
}

// NewFieldSubstitution returns a rule that replaces references to the field of
// the given type with the target field.
func NewFieldSubstitution(fromType, fromField string, to *module.FieldReference) (*FieldSubstitution, error) {
	if fromType == "" || fromField == "" || to == nil {
		return nil, rewrite.NewConfigurationError(fromType+"::"+fromField,
			"field substitution needs a source and a target field", nil)
	}
	return &FieldSubstitution{
		fromType:  fromType,
		fromField: fromField,
		to:        to,
	}, nil
}

// Phrase implements rewrite.Rule.
func (r *FieldSubstitution) Phrase() string {
	return fmt.Sprintf("%s.%s field", r.fromType, r.fromField)
}

// Criteria implements rewrite.Rule.
func (r *FieldSubstitution) Criteria() string {
	return r.fromType + "::" + r.fromField + "->" + typeCriteria(r.to.DeclaringType) + "::" + r.to.FullName()
}

// HandleInstruction implements rewrite.InstructionRule.
func (r *FieldSubstitution) HandleInstruction(ctx *rewrite.Context, _ *module.InstructionList, ins *module.Instruction) (bool, error) {
	ref, ok := ins.FieldOperand()
	if !ok || ref.Name != r.fromField || ref.DeclaringType.FullName() != r.fromType {
		return false, nil
	}
	if !rewrite.IsBroken(ctx.FieldStatus(ref)) {
		return false, nil
	}
	ins.Operand = ctx.Module.ImportField(r.to)
	return true, nil
}

// FieldToPropertyPromotion replaces accesses of broken fields with calls of the
// property with the same name on the declaring type. Loads call the getter and
// stores call the setter.
type FieldToPropertyPromotion struct {
	watch set.Set[string]
}

// NewFieldToPropertyPromotion returns a rule for fields declared in the given assemblies.
func NewFieldToPropertyPromotion(assemblies ...string) *FieldToPropertyPromotion {
	watch := set.New[string]()
	for _, name := range assemblies {
		watch.Add(name)
	}
	return &FieldToPropertyPromotion{
		watch: watch,
	}
}

// Phrase implements rewrite.Rule.
func (r *FieldToPropertyPromotion) Phrase() string {
	return "fields now properties"
}

// Criteria implements rewrite.Rule.
func (r *FieldToPropertyPromotion) Criteria() string {
	return sortedCriteria(r.watch)
}

// HandleInstruction implements rewrite.InstructionRule.
func (r *FieldToPropertyPromotion) HandleInstruction(ctx *rewrite.Context, list *module.InstructionList, ins *module.Instruction) (bool, error) {
	ref, ok := ins.FieldOperand()
	if !ok || !r.watch.Contains(ref.DeclaringType.ScopeName()) {
		return false, nil
	}
	if !rewrite.IsBroken(ctx.FieldStatus(ref)) {
		return false, nil
	}

	typ := ctx.FindType(ref.DeclaringType)
	if typ == nil {
		return false, nil
	}
	property := typ.Property(ref.Name)
	if property == nil {
		return false, nil
	}
	call, ok := accessorCall(ctx, ins, property)
	if !ok {
		return false, nil
	}

	list.Replace(ins, call)
	ctx.AddPhrase(fmt.Sprintf("%s.%s field (now a property)", ref.DeclaringType.Name, ref.Name))
	return true, nil
}
