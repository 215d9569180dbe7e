package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

var (
	_ rewrite.TypeRule = (*TypeSubstitution)(nil)
	_ rewrite.TypeRule = (*VersionedAssemblySubstitution)(nil)
	_ rewrite.TypeRule = (*PlatformScopeRemap)(nil)
)

// TypeSubstitution replaces a broken type reference by its full name.
type TypeSubstitution struct {
	from string
	to   *module.TypeReference
}

// NewTypeSubstitution returns a rule that replaces references to the type with
// the given full name by the target type.
func NewTypeSubstitution(from string, to *module.TypeReference) (*TypeSubstitution, error) {
	if from == "" || to == nil {
		return nil, rewrite.NewConfigurationError(from, "type substitution needs a source and a target type", nil)
	}
	return &TypeSubstitution{
		from: from,
		to:   to,
	}, nil
}

// Phrase implements rewrite.Rule.
func (r *TypeSubstitution) Phrase() string {
	return r.from + " type"
}

// Criteria implements rewrite.Rule.
func (r *TypeSubstitution) Criteria() string {
	return r.from + "->" + typeCriteria(r.to)
}

// HandleType implements rewrite.TypeRule.
func (r *TypeSubstitution) HandleType(ctx *rewrite.Context, ref *module.TypeReference) (*module.TypeReference, bool) {
	if ref.Kind != module.TypeNormal || ref.FullName() != r.from {
		return nil, false
	}
	if !rewrite.IsBroken(ctx.TypeStatus(ref)) {
		return nil, false
	}
	return ctx.Module.Import(r.to), true
}

// VersionedAssemblySubstitution replaces broken references into a specific
// major version of an assembly with the equivalent type of the assembly that
// is loaded now, optionally with renamed namespaces.
type VersionedAssemblySubstitution struct {
	assembly   string
	major      int
	target     string
	namespaces map[string]string
}

// NewVersionedAssemblySubstitution returns a rule for references into the given
// assembly and major version. The namespaces map renames namespaces, nested
// namespaces of a renamed namespace are renamed as well.
func NewVersionedAssemblySubstitution(assembly string, major int, target string, namespaces map[string]string) *VersionedAssemblySubstitution {
	if target == "" {
		target = assembly
	}
	return &VersionedAssemblySubstitution{
		assembly:   assembly,
		major:      major,
		target:     target,
		namespaces: namespaces,
	}
}

// Phrase implements rewrite.Rule.
func (r *VersionedAssemblySubstitution) Phrase() string {
	return fmt.Sprintf("%s %d.x", r.assembly, r.major)
}

// Criteria implements rewrite.Rule.
func (r *VersionedAssemblySubstitution) Criteria() string {
	namespaces := make([]string, 0, len(r.namespaces))
	for from, to := range r.namespaces {
		namespaces = append(namespaces, from+"="+to)
	}
	slices.Sort(namespaces)
	return fmt.Sprintf("%s %d->%s %s", r.assembly, r.major, r.target, strings.Join(namespaces, ","))
}

// HandleType implements rewrite.TypeRule.
func (r *VersionedAssemblySubstitution) HandleType(ctx *rewrite.Context, ref *module.TypeReference) (*module.TypeReference, bool) {
	if ref.Kind != module.TypeNormal || ref.DeclaringType != nil || ref.Scope == nil {
		return nil, false
	}
	if ref.Scope.Name != r.assembly || ref.Scope.Version.Major != r.major {
		return nil, false
	}
	if !rewrite.IsBroken(ctx.TypeStatus(ref)) {
		return nil, false
	}

	fullName := r.rename(ref.Namespace)
	if fullName == "" {
		fullName = ref.Name
	} else {
		fullName += "." + ref.Name
	}
	typ := ctx.Resolver.Environment().Type(r.target, fullName)
	if typ == nil {
		return nil, false
	}
	return ctx.Module.Import(typ.Reference()), true
}

func (r *VersionedAssemblySubstitution) rename(namespace string) string {
	if renamed, ok := r.namespaces[namespace]; ok {
		return renamed
	}
	// the longest renamed parent namespace wins
	best, renamed := "", namespace
	for from, to := range r.namespaces {
		if rest, ok := strings.CutPrefix(namespace, from+"."); ok && len(from) > len(best) {
			best, renamed = from, to+"."+rest
		}
	}
	return renamed
}

// PlatformScopeRemap moves references to types of the other platform build to
// the loaded assembly that defines the same type on this platform.
type PlatformScopeRemap struct{}

// NewPlatformScopeRemap returns a new platform scope remap rule.
func NewPlatformScopeRemap() *PlatformScopeRemap {
	return &PlatformScopeRemap{}
}

// Phrase implements rewrite.Rule.
func (r *PlatformScopeRemap) Phrase() string {
	return "platform assembly references"
}

// Criteria implements rewrite.Rule.
func (r *PlatformScopeRemap) Criteria() string {
	return ""
}

// HandleType implements rewrite.TypeRule.
func (r *PlatformScopeRemap) HandleType(ctx *rewrite.Context, ref *module.TypeReference) (*module.TypeReference, bool) {
	if ctx.Platforms == nil || ref.Kind != module.TypeNormal || ref.Scope == nil {
		return nil, false
	}
	if !ctx.Platforms.IsForeign(ref.Scope.Name) || !rewrite.IsBroken(ctx.TypeStatus(ref)) {
		return nil, false
	}

	assembly, _, ok := ctx.Platforms.FindTarget(ref.FullName())
	if !ok {
		return nil, false
	}
	replacement := ref.Clone()
	scope := *assembly
	replacement.Scope = &scope
	return ctx.Module.Import(replacement), true
}
