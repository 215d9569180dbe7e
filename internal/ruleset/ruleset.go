// Package ruleset reads additional rewrite rules from YAML rule set files.
package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
	"github.com/yinxiangshi/modrewrite/internal/rewrite/rules"
	"gopkg.in/yaml.v3"
)

// Version is the supported rule set file version.
const Version = 1

// rule kinds.
const (
	KindType             = "type"
	KindField            = "field"
	KindMethods          = "methods"
	KindFacade           = "facade"
	KindAssembly         = "assembly"
	KindVirtualEntryCall = "virtual-entry-call"
	KindTypeFinder       = "type-finder"
	KindMemberFinder     = "member-finder"
)

// File is the content of a rule set file.
type File struct {
	Version int    `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// Rule is a single rule definition. The kind selects which of the other
// fields are used.
type Rule struct {
	Kind string `yaml:"kind"`

	From     string `yaml:"from,omitempty"`     // type full name or Type::Member
	To       string `yaml:"to,omitempty"`       // type full name or Type::Member
	Assembly string `yaml:"assembly,omitempty"` // assembly that defines To

	OnlyIfPlatformChanged bool `yaml:"only_if_platform_changed,omitempty"`
	DefaultConstructor    bool `yaml:"default_constructor,omitempty"`

	Major      int               `yaml:"major,omitempty"`
	Target     string            `yaml:"target,omitempty"`
	Namespaces map[string]string `yaml:"namespaces,omitempty"`

	Phrase   string   `yaml:"phrase,omitempty"`
	Severity string   `yaml:"severity,omitempty"`
	Types    []string `yaml:"types,omitempty"`
	Members  []string `yaml:"members,omitempty"`
}

// Read decodes a rule set. Unknown keys are errors.
func Read(r io.Reader) (*File, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var file File
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{Version: Version}, nil
		}
		return nil, fmt.Errorf("decoding rule set: %w", err)
	}
	if file.Version != Version {
		return nil, fmt.Errorf("unsupported rule set version %d", file.Version)
	}
	return &file, nil
}

// Load reads the rule set file at the given path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule set file: %w", err)
	}
	file, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("rule set '%s': %w", path, err)
	}
	return file, nil
}

// Build creates the rewrite rules of the file. Target types are looked up in
// the environment, a missing target is a configuration error.
func (f *File) Build(env *resolve.Environment) ([]rewrite.Rule, error) {
	result := make([]rewrite.Rule, 0, len(f.Rules))
	for i, def := range f.Rules {
		rule, err := def.build(env)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, def.Kind, err)
		}
		result = append(result, rule)
	}
	return result, nil
}

func (r Rule) build(env *resolve.Environment) (rewrite.Rule, error) {
	switch r.Kind {
	case KindType:
		target, err := r.targetType(env, r.To)
		if err != nil {
			return nil, err
		}
		return checked(rules.NewTypeSubstitution(r.From, target.Reference()))

	case KindField:
		return r.buildField(env)

	case KindMethods:
		target, err := r.targetType(env, r.To)
		if err != nil {
			return nil, err
		}
		return checked(rules.NewDeclaringTypeRemap(r.From, target.Reference(), r.OnlyIfPlatformChanged))

	case KindFacade:
		facade, err := r.targetType(env, r.To)
		if err != nil {
			return nil, err
		}
		var opts []rules.FacadeOption
		if r.DefaultConstructor {
			opts = append(opts, rules.WithDefaultConstructor())
		}
		return checked(rules.NewFacadeMapping(r.From, facade, opts...))

	case KindAssembly:
		if r.Assembly == "" || r.Target == "" {
			return nil, rewrite.NewConfigurationError("", "assembly and target are required", nil)
		}
		return rules.NewVersionedAssemblySubstitution(r.Assembly, r.Major, r.Target, r.Namespaces), nil

	case KindVirtualEntryCall:
		typeName, member, err := splitMember(r.From)
		if err != nil {
			return nil, err
		}
		return checked(rules.NewVirtualEntryCallRemoval(typeName, member))

	case KindTypeFinder:
		kind, err := r.flagKind()
		if err != nil {
			return nil, err
		}
		if r.Phrase == "" || len(r.Types) == 0 {
			return nil, rewrite.NewConfigurationError("", "phrase and types are required", nil)
		}
		return rules.NewTypeFinder(r.Phrase, kind, r.Types...), nil

	case KindMemberFinder:
		kind, err := r.flagKind()
		if err != nil {
			return nil, err
		}
		if r.Phrase == "" || r.From == "" {
			return nil, rewrite.NewConfigurationError("", "phrase and from are required", nil)
		}
		return rules.NewMemberFinder(r.Phrase, kind, r.From, r.Members...), nil

	default:
		return nil, rewrite.NewConfigurationError(r.Kind, "unknown rule kind", nil)
	}
}

func (r Rule) buildField(env *resolve.Environment) (rewrite.Rule, error) {
	fromType, fromField, err := splitMember(r.From)
	if err != nil {
		return nil, err
	}
	toType, toField, err := splitMember(r.To)
	if err != nil {
		return nil, err
	}
	target, err := r.targetType(env, toType)
	if err != nil {
		return nil, err
	}
	field := target.Field(toField)
	if field == nil {
		return nil, rewrite.NewConfigurationError(r.To, "target field not found", nil)
	}
	return checked(rules.NewFieldSubstitution(fromType, fromField, field.Reference()))
}

// targetType returns the loaded type definition with the given full name.
func (r Rule) targetType(env *resolve.Environment, fullName string) (*module.TypeDefinition, error) {
	if r.Assembly == "" || fullName == "" {
		return nil, rewrite.NewConfigurationError(fullName, "target assembly and type are required", nil)
	}
	typ := env.Type(r.Assembly, fullName)
	if typ == nil {
		return nil, rewrite.NewConfigurationError(r.Assembly+" "+fullName, "target type not loaded", nil)
	}
	return typ, nil
}

func (r Rule) flagKind() (rewrite.FlagKind, error) {
	switch strings.ToLower(r.Severity) {
	case "", "warning":
		return rewrite.FlagWarning, nil
	case "not-compatible", "not compatible":
		return rewrite.FlagNotCompatible, nil
	default:
		return "", rewrite.NewConfigurationError(r.Severity, "unknown severity", nil)
	}
}

// checked returns the rule as interface value, a rule that failed to build is
// returned as untyped nil.
func checked[T rewrite.Rule](rule T, err error) (rewrite.Rule, error) {
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// splitMember splits a "Namespace.Type::Member" name.
func splitMember(name string) (string, string, error) {
	typeName, member, ok := strings.Cut(name, "::")
	if !ok || typeName == "" || member == "" {
		return "", "", rewrite.NewConfigurationError(name, "expected a Type::Member name", nil)
	}
	return typeName, member, nil
}
