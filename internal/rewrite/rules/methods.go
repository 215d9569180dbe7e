package rules

import (
	"fmt"

	"github.com/yinxiangshi/modrewrite/internal/instruction"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

var (
	_ rewrite.InstructionRule = (*DeclaringTypeRemap)(nil)
	_ rewrite.InstructionRule = (*OptionalParameterBackfill)(nil)
	_ rewrite.InstructionRule = (*VirtualEntryCallRemoval)(nil)
)

// DeclaringTypeRemap moves broken method references from one type to another
// type that has a method with the same signature.
type DeclaringTypeRemap struct {
	from                  string
	to                    *module.TypeReference
	onlyIfPlatformChanged bool
}

// NewDeclaringTypeRemap returns a rule that moves method references of the type
// with the given full name to the target type. If onlyIfPlatformChanged is set,
// the rule only applies to mods that were compiled on the other platform build.
func NewDeclaringTypeRemap(from string, to *module.TypeReference, onlyIfPlatformChanged bool) (*DeclaringTypeRemap, error) {
	if from == "" || to == nil {
		return nil, rewrite.NewConfigurationError(from, "declaring type remap needs a source and a target type", nil)
	}
	return &DeclaringTypeRemap{
		from:                  from,
		to:                    to,
		onlyIfPlatformChanged: onlyIfPlatformChanged,
	}, nil
}

// Phrase implements rewrite.Rule.
func (r *DeclaringTypeRemap) Phrase() string {
	return r.from + " methods"
}

// Criteria implements rewrite.Rule.
func (r *DeclaringTypeRemap) Criteria() string {
	return fmt.Sprintf("%s->%s platform-changed=%t", r.from, typeCriteria(r.to), r.onlyIfPlatformChanged)
}

// HandleInstruction implements rewrite.InstructionRule.
func (r *DeclaringTypeRemap) HandleInstruction(ctx *rewrite.Context, _ *module.InstructionList, ins *module.Instruction) (bool, error) {
	ref, ok := ins.MethodOperand()
	if !ok || ref.DeclaringType.FullName() != r.from {
		return false, nil
	}
	if r.onlyIfPlatformChanged && !ctx.PlatformChanged {
		return false, nil
	}
	if !rewrite.IsBroken(ctx.MethodStatus(ref)) {
		return false, nil
	}

	target := ctx.FindType(r.to)
	if target == nil {
		return false, nil
	}
	remapped := ref.Clone()
	remapped.DeclaringType = r.to.Clone()
	found := false
	for _, method := range target.MethodsNamed(ref.Name) {
		if resolve.SignatureMatches(method, remapped) {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}

	ins.Operand = ctx.Module.ImportMethod(remapped)
	return true, nil
}

// OptionalParameterBackfill fixes calls of methods that gained optional
// parameters by pushing the default values of the new parameters before the call.
type OptionalParameterBackfill struct{}

// NewOptionalParameterBackfill returns a new optional parameter backfill rule.
func NewOptionalParameterBackfill() *OptionalParameterBackfill {
	return &OptionalParameterBackfill{}
}

// Phrase implements rewrite.Rule.
func (r *OptionalParameterBackfill) Phrase() string {
	return "methods with new optional parameters"
}

// Criteria implements rewrite.Rule.
func (r *OptionalParameterBackfill) Criteria() string {
	return ""
}

// HandleInstruction implements rewrite.InstructionRule.
func (r *OptionalParameterBackfill) HandleInstruction(ctx *rewrite.Context, list *module.InstructionList, ins *module.Instruction) (bool, error) {
	ref, ok := ins.MethodOperand()
	if !ok || (!ins.Opcode.IsCall() && ins.Opcode != instruction.Newobj) {
		return false, nil
	}
	if !rewrite.IsBroken(ctx.MethodStatus(ref)) {
		return false, nil
	}

	typ := ctx.FindType(ref.DeclaringType)
	if typ == nil {
		return false, nil
	}

	for _, candidate := range typ.MethodsNamed(ref.Name) {
		loads, ok := backfillLoads(candidate, ref)
		if !ok {
			continue
		}

		for _, load := range loads {
			list.InsertBefore(load, ins)
		}
		// branches into the call must also run the inserted loads
		list.Retarget(ins, loads[0])
		extended := candidate.Reference()
		extended.DeclaringType = ref.DeclaringType
		extended.GenericArguments = ref.GenericArguments
		ins.Operand = ctx.Module.ImportMethod(extended)

		ctx.AddPhrase(fmt.Sprintf("%s.%s (optional parameters)", ref.DeclaringType.Name, ref.Name))
		return true, nil
	}
	return false, nil
}

// backfillLoads returns the instructions that push the defaults of the
// parameters the candidate has beyond the referenced ones. It fails if the
// leading parameters differ or any missing default is not a supported constant.
func backfillLoads(candidate *module.MethodDefinition, ref *module.MethodReference) ([]*module.Instruction, bool) {
	supplied := len(ref.Parameters)
	if len(candidate.Parameters) <= supplied ||
		len(candidate.GenericParameters) != ref.GenericParameterCount ||
		candidate.ReturnType.FullName() != ref.ReturnType.FullName() {
		return nil, false
	}
	for i, param := range ref.Parameters {
		if candidate.Parameters[i].ParameterType.FullName() != param.FullName() {
			return nil, false
		}
	}

	loads := make([]*module.Instruction, 0, len(candidate.Parameters)-supplied)
	for _, param := range candidate.Parameters[supplied:] {
		if !param.Optional {
			return nil, false
		}
		load, ok := loadConstant(param)
		if !ok {
			return nil, false
		}
		loads = append(loads, load)
	}
	return loads, true
}

// VirtualEntryCallRemoval removes calls of a removed base entry method, the
// call and the loads of this and the single argument before it.
type VirtualEntryCallRemoval struct {
	declaringType string
	name          string
}

// NewVirtualEntryCallRemoval returns a rule that removes calls of the named
// method of the given type.
func NewVirtualEntryCallRemoval(declaringType, name string) (*VirtualEntryCallRemoval, error) {
	if declaringType == "" || name == "" {
		return nil, rewrite.NewConfigurationError(declaringType+"::"+name,
			"entry call removal needs a declaring type and a method name", nil)
	}
	return &VirtualEntryCallRemoval{
		declaringType: declaringType,
		name:          name,
	}, nil
}

// Phrase implements rewrite.Rule.
func (r *VirtualEntryCallRemoval) Phrase() string {
	return fmt.Sprintf("%s::%s call", r.declaringType, r.name)
}

// Criteria implements rewrite.Rule.
func (r *VirtualEntryCallRemoval) Criteria() string {
	return r.declaringType + "::" + r.name
}

// HandleInstruction implements rewrite.InstructionRule.
func (r *VirtualEntryCallRemoval) HandleInstruction(ctx *rewrite.Context, list *module.InstructionList, ins *module.Instruction) (bool, error) {
	if !ins.Opcode.IsCall() {
		return false, nil
	}
	ref, ok := ins.MethodOperand()
	if !ok || ref.Name != r.name || ref.DeclaringType.FullName() != r.declaringType {
		return false, nil
	}
	if !rewrite.IsBroken(ctx.MethodStatus(ref)) {
		return false, nil
	}

	loadArg := ins.Previous()
	var loadThis *module.Instruction
	if loadArg != nil {
		loadThis = loadArg.Previous()
	}
	if len(ref.Parameters) != 1 || !isLoadArg(loadThis, 0) || !isLoadArg(loadArg, 1) {
		return false, rewrite.NewInvariantError(ref.FullName(),
			"expected the call to be preceded by loading this and the first argument")
	}

	list.Remove(loadThis)
	list.Remove(loadArg)
	list.Remove(ins)
	return true, nil
}
