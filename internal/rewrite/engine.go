// Package rewrite implements the rewrite engine that repairs broken references
// of a mod module in place.
package rewrite

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/platform"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
)

// Engine applies a rule set to modules. It is built once and shared by all
// module loads, a pass does not modify the engine or its rules.
type Engine struct {
	logger *log.Logger

	moduleRules      []ModuleRule
	typeRules        []TypeRule
	instructionRules []InstructionRule

	typePhrases        []string
	instructionPhrases []string
}

// New creates a new engine for the given rules. The order of the rules is
// their priority within each rule kind.
func New(logger *log.Logger, rules ...Rule) (*Engine, error) {
	e := &Engine{
		logger: logger,
	}
	for i, rule := range rules {
		matched := false
		if r, ok := rule.(ModuleRule); ok {
			e.moduleRules = append(e.moduleRules, r)
			matched = true
		}
		if r, ok := rule.(TypeRule); ok {
			e.typeRules = append(e.typeRules, r)
			e.typePhrases = append(e.typePhrases, r.Phrase())
			matched = true
		}
		if r, ok := rule.(InstructionRule); ok {
			e.instructionRules = append(e.instructionRules, r)
			e.instructionPhrases = append(e.instructionPhrases, r.Phrase())
			matched = true
		}
		if !matched {
			return nil, NewConfigurationError(fmt.Sprintf("rule %d (%T)", i, rule),
				"rule does not implement a rule kind", nil)
		}
	}
	return e, nil
}

// Input is the module and environment of one rewrite pass.
type Input struct {
	Module          *module.Module
	Environment     *resolve.Environment
	Platforms       *platform.Map
	PlatformChanged bool
}

// Rewrite runs a single pass over the module and mutates it in place.
// Broken references that no rule fixes are recorded in the outcome, an error
// is only returned for invariant violations which abort the pass.
func (e *Engine) Rewrite(input Input) (*Outcome, error) {
	var validated []string
	if input.Platforms != nil {
		validated = input.Platforms.ForeignNames()
	}

	p := &pass{
		engine: e,
		ctx: &Context{
			Logger:          e.logger,
			Module:          input.Module,
			Resolver:        resolve.NewResolver(input.Environment, input.Module, validated...),
			Platforms:       input.Platforms,
			PlatformChanged: input.PlatformChanged,
			recorder:        newRecorder(),
		},
	}

	if err := p.run(); err != nil {
		return nil, err
	}
	return p.ctx.recorder.outcome(), nil
}

// pass is the state of one rewrite pass.
type pass struct {
	engine   *Engine
	ctx      *Context
	location string // full name of the member being visited
}

func (p *pass) run() error {
	for _, rule := range p.engine.moduleRules {
		p.ctx.resetPhrase()
		if rule.HandleModule(p.ctx) {
			p.changed(rule)
		}
	}

	for _, typ := range p.ctx.Module.AllTypes() {
		if err := p.visitTypeDefinition(typ); err != nil {
			return fmt.Errorf("rewriting type %s: %w", typ.FullName(), err)
		}
	}
	return nil
}

func (p *pass) changed(rule Rule) {
	p.ctx.recorder.changed = true
	if !p.ctx.phraseAdded {
		p.ctx.recorder.phrases.Add(rule.Phrase())
	}
}

func (p *pass) visitTypeDefinition(typ *module.TypeDefinition) error {
	p.location = typ.FullName()
	p.visitType(&typ.BaseType, true)
	for i := range typ.Interfaces {
		p.visitType(&typ.Interfaces[i], true)
	}
	p.visitGenericParameters(typ.GenericParameters)

	for _, field := range typ.Fields {
		p.location = typ.FullName() + "::" + field.Name
		p.visitType(&field.FieldType, true)
	}
	for _, property := range typ.Properties {
		p.location = typ.FullName() + "::" + property.Name
		p.visitType(&property.PropertyType, true)
	}

	for _, method := range typ.Methods {
		p.location = typ.FullName() + "::" + method.Name
		if err := p.visitMethod(method); err != nil {
			return fmt.Errorf("method %s: %w", method.Name, err)
		}
	}
	return nil
}

func (p *pass) visitMethod(method *module.MethodDefinition) error {
	p.visitType(&method.ReturnType, true)
	for _, param := range method.Parameters {
		p.visitType(&param.ParameterType, true)
	}
	p.visitGenericParameters(method.GenericParameters)

	if !method.HasBody() {
		return nil
	}
	for i := range method.Body.Variables {
		p.visitType(&method.Body.Variables[i], true)
	}

	list := method.Body.Instructions
	for ins := list.Front(); ins != nil; {
		// rules may remove or replace the instruction, so the successor is
		// captured first and instructions inserted by rules are not visited
		next := ins.Next()
		if err := p.visitInstruction(list, ins); err != nil {
			return err
		}
		ins = next
	}
	return nil
}

func (p *pass) visitGenericParameters(params []*module.GenericParameter) {
	for _, param := range params {
		for i := range param.Constraints {
			p.visitType(&param.Constraints[i], true)
		}
	}
}

// visitType applies the type rules to the reference in the slot and then
// recursively to every type it is composed of. Broken references are recorded
// if report is set.
func (p *pass) visitType(slot **module.TypeReference, report bool) {
	ref := *slot
	if ref == nil {
		return
	}

	for _, rule := range p.engine.typeRules {
		p.ctx.resetPhrase()
		replacement, ok := rule.HandleType(p.ctx, ref)
		if !ok {
			continue
		}
		if replacement != nil && replacement != ref {
			*slot = replacement
			ref = replacement
			p.changed(rule)
		}
		break
	}

	switch ref.Kind {
	case module.TypeGenericInstance:
		p.visitType(&ref.ElementType, report)
		for i := range ref.GenericArguments {
			p.visitType(&ref.GenericArguments[i], report)
		}

	case module.TypeArray, module.TypeByRef:
		p.visitType(&ref.ElementType, report)

	case module.TypeGenericParameter:
		for i := range ref.Constraints {
			p.visitType(&ref.Constraints[i], report)
		}

	default:
		// the outer type of a nested reference is checked through the nested type
		p.visitType(&ref.DeclaringType, false)
		p.visitGenericParameters(ref.GenericParameters)
		if report && IsBroken(p.ctx.TypeStatus(ref)) {
			p.ctx.recorder.addUnresolved(Unresolved{
				Kind:      TypeReference,
				Reference: ref.FullName(),
				Location:  p.location,
				Attempted: p.engine.typePhrases,
			})
		}
	}
}

func (p *pass) visitInstruction(list *module.InstructionList, ins *module.Instruction) error {
	switch operand := ins.Operand.(type) {
	case *module.TypeReference:
		p.visitType(&operand, true)
		ins.Operand = operand
		return nil

	case *module.FieldReference:
		p.visitType(&operand.DeclaringType, false)
		p.visitType(&operand.FieldType, false)

	case *module.MethodReference:
		p.visitType(&operand.DeclaringType, false)
		p.visitType(&operand.ReturnType, false)
		for i := range operand.Parameters {
			p.visitType(&operand.Parameters[i], false)
		}
		for i := range operand.GenericArguments {
			p.visitType(&operand.GenericArguments[i], false)
		}

	default:
		return nil
	}

	for _, rule := range p.engine.instructionRules {
		p.ctx.resetPhrase()
		changed, err := rule.HandleInstruction(p.ctx, list, ins)
		if err != nil {
			return fmt.Errorf("applying %s rule: %w", rule.Phrase(), err)
		}
		if changed {
			p.changed(rule)
			return nil
		}
	}

	p.reportMember(ins)
	return nil
}

// reportMember records the member reference of an instruction that no rule
// changed if it is still broken.
func (p *pass) reportMember(ins *module.Instruction) {
	var unresolved Unresolved
	switch operand := ins.Operand.(type) {
	case *module.FieldReference:
		if !IsBroken(p.ctx.FieldStatus(operand)) {
			return
		}
		unresolved = Unresolved{Kind: FieldReference, Reference: operand.DeclaringType.FullName() + "::" + operand.Name}

	case *module.MethodReference:
		if !IsBroken(p.ctx.MethodStatus(operand)) {
			return
		}
		unresolved = Unresolved{Kind: MethodReference, Reference: operand.FullName()}

	default:
		return
	}

	unresolved.Location = p.location
	unresolved.Attempted = p.engine.instructionPhrases
	p.ctx.recorder.addUnresolved(unresolved)
}
