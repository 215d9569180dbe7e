package rules

import (
	"fmt"
	"strings"

	"github.com/yinxiangshi/modrewrite/internal/instruction"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
	"github.com/yinxiangshi/modrewrite/internal/symbols"
)

var _ rewrite.InstructionRule = (*FacadeMapping)(nil)

// staticConstructorName is the method name of type initializers.
const staticConstructorName = ".cctor"

// FacadeOption configures a facade mapping.
type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	defaultConstructor bool
}

// WithDefaultConstructor maps the parameterless constructor as well. The facade
// must declare a public parameterless constructor when this option is set.
func WithDefaultConstructor() FacadeOption {
	return func(opts *facadeOptions) {
		opts.defaultConstructor = true
	}
}

// FacadeMapping redirects member references of an original type to the members
// of a facade type that mirrors its public surface. Mappings are keyed by the
// signature the member has on the original type.
type FacadeMapping struct {
	original string
	facade   *module.TypeDefinition

	methods *symbols.Manager[*module.MethodDefinition]
	fields  *symbols.Manager[*module.PropertyDefinition]
}

// NewFacadeMapping registers every public property, method and constructor of
// the facade as replacement of the equivalent member of the original type.
// The parameterless constructor is skipped unless WithDefaultConstructor is
// passed, since it can not be told apart from an implicit default constructor.
func NewFacadeMapping(original string, facade *module.TypeDefinition, opts ...FacadeOption) (*FacadeMapping, error) {
	if original == "" || facade == nil {
		return nil, rewrite.NewConfigurationError(original, "facade mapping needs an original type and a facade", nil)
	}
	var options facadeOptions
	for _, opt := range opts {
		opt(&options)
	}

	r := &FacadeMapping{
		original: original,
		facade:   facade,
		methods:  symbols.New[*module.MethodDefinition](),
		fields:   symbols.New[*module.PropertyDefinition](),
	}
	if err := r.registerProperties(); err != nil {
		return nil, err
	}
	if err := r.registerMethods(options); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FacadeMapping) registerProperties() error {
	for _, property := range r.facade.Properties {
		for _, accessor := range []*module.MethodDefinition{property.Getter, property.Setter} {
			if accessor == nil || !accessor.Public {
				continue
			}
			if err := r.addMethod(accessor); err != nil {
				return err
			}
		}
		if !r.isPublic(property) {
			continue
		}

		key := r.originalName(property.PropertyType.FullName() + " " + r.facade.FullName() + "::" + property.Name)
		if err := r.fields.Add(key, property); err != nil {
			return rewrite.NewConfigurationError(r.original, "registering facade property", err)
		}
	}
	return nil
}

func (r *FacadeMapping) registerMethods(options facadeOptions) error {
	defaultConstructor := false
	for _, method := range r.facade.Methods {
		if !method.Public || method.IsAccessor || method.Name == staticConstructorName {
			continue
		}
		if method.IsConstructor() && len(method.Parameters) == 0 {
			defaultConstructor = true
			if !options.defaultConstructor {
				continue
			}
		}
		if err := r.addMethod(method); err != nil {
			return err
		}
	}

	if options.defaultConstructor && !defaultConstructor {
		return rewrite.NewConfigurationError(r.facade.FullName(), "facade has no public parameterless constructor", nil)
	}
	return nil
}

func (r *FacadeMapping) addMethod(method *module.MethodDefinition) error {
	key := r.originalName(method.FullName())
	if err := r.methods.Add(key, method); err != nil {
		return rewrite.NewConfigurationError(r.original, "registering facade method", err)
	}
	return nil
}

// isPublic returns whether any accessor of the property is public.
func (r *FacadeMapping) isPublic(property *module.PropertyDefinition) bool {
	return (property.Getter != nil && property.Getter.Public) ||
		(property.Setter != nil && property.Setter.Public)
}

// originalName rewrites a facade member signature to the signature of the
// equivalent member of the original type.
func (r *FacadeMapping) originalName(signature string) string {
	return strings.ReplaceAll(signature, r.facade.FullName(), r.original)
}

// MethodMappings returns the number of registered method and accessor mappings.
func (r *FacadeMapping) MethodMappings() int {
	return r.methods.Len()
}

// FieldMappings returns the number of registered field to property mappings.
func (r *FacadeMapping) FieldMappings() int {
	return r.fields.Len()
}

// Keys returns the signatures of all mapped members in registration order,
// methods first.
func (r *FacadeMapping) Keys() []string {
	return append(r.methods.Keys(), r.fields.Keys()...)
}

// Phrase implements rewrite.Rule.
func (r *FacadeMapping) Phrase() string {
	return r.original + " facade"
}

// Criteria implements rewrite.Rule.
func (r *FacadeMapping) Criteria() string {
	return r.original + "->" + typeCriteria(r.facade.Reference()) + " " + strings.Join(r.Keys(), ",")
}

// HandleInstruction implements rewrite.InstructionRule.
func (r *FacadeMapping) HandleInstruction(ctx *rewrite.Context, list *module.InstructionList, ins *module.Instruction) (bool, error) {
	switch ref := ins.Operand.(type) {
	case *module.MethodReference:
		return r.handleMethod(ctx, ins, ref), nil
	case *module.FieldReference:
		return r.handleField(ctx, list, ins, ref), nil
	default:
		return false, nil
	}
}

func (r *FacadeMapping) handleMethod(ctx *rewrite.Context, ins *module.Instruction, ref *module.MethodReference) bool {
	if ref.DeclaringType.Element().FullName() != r.original {
		return false
	}
	target, ok := r.methods.Get(ref.FullName())
	if !ok || !rewrite.IsBroken(ctx.MethodStatus(ref)) {
		return false
	}

	replacement := target.Reference()
	replacement.GenericArguments = ref.GenericArguments
	ins.Operand = ctx.Module.ImportMethod(replacement)
	if target.Static && ins.Opcode == instruction.Callvirt {
		ins.Opcode = instruction.Call
	}
	return true
}

func (r *FacadeMapping) handleField(ctx *rewrite.Context, list *module.InstructionList, ins *module.Instruction, ref *module.FieldReference) bool {
	if ref.DeclaringType.Element().FullName() != r.original {
		return false
	}
	property, ok := r.fields.Get(ref.FullName())
	if !ok || !rewrite.IsBroken(ctx.FieldStatus(ref)) {
		return false
	}

	call, ok := accessorCall(ctx, ins, property)
	if !ok {
		return false
	}
	list.Replace(ins, call)
	ctx.AddPhrase(fmt.Sprintf("%s.%s field (now a facade property)", ref.DeclaringType.Name, ref.Name))
	return true
}
