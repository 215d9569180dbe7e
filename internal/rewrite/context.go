package rewrite

import (
	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/platform"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
)

// Context is the state of one rewrite pass that is passed to the rules.
type Context struct {
	Logger          *log.Logger
	Module          *module.Module
	Resolver        *resolve.Resolver
	Platforms       *platform.Map
	PlatformChanged bool // the mod was compiled on a platform with a different game build

	recorder    *recorder
	phraseAdded bool
}

// AddPhrase records a description of an applied rewrite. If a rule adds a
// phrase while handling a reference, its default phrase is not recorded.
func (c *Context) AddPhrase(phrase string) {
	c.recorder.phrases.Add(phrase)
	c.phraseAdded = true
}

// Flag records a detected usage.
func (c *Context) Flag(kind FlagKind, phrase string) {
	c.recorder.flags.Add(Flag{Kind: kind, Phrase: phrase})
}

// TypeStatus returns the resolution status of a type reference.
func (c *Context) TypeStatus(ref *module.TypeReference) resolve.Status {
	_, status := c.Resolver.Type(ref)
	return status
}

// FieldStatus returns the resolution status of a field reference.
func (c *Context) FieldStatus(ref *module.FieldReference) resolve.Status {
	_, status := c.Resolver.Field(ref)
	return status
}

// MethodStatus returns the resolution status of a method reference.
func (c *Context) MethodStatus(ref *module.MethodReference) resolve.Status {
	_, status := c.Resolver.Method(ref)
	return status
}

// IsBroken returns whether a resolution status marks a reference that must be
// fixed. Resolved and external references are never rewritten.
func IsBroken(status resolve.Status) bool {
	return status == resolve.Missing
}

// FindType returns the loaded definition of a type that is referenced by
// full name, independent of the assembly the reference points to. The
// declaring assembly of the reference is searched first, then the platform
// targets and finally all loaded assemblies.
func (c *Context) FindType(ref *module.TypeReference) *module.TypeDefinition {
	if typ, status := c.Resolver.Type(ref); status == resolve.Resolved && typ != nil {
		return typ
	}
	fullName := ref.Element().FullName()
	if c.Platforms != nil {
		if _, typ, ok := c.Platforms.FindTarget(fullName); ok {
			return typ
		}
	}
	return c.Resolver.Environment().FindType(fullName)
}

func (c *Context) resetPhrase() {
	c.phraseAdded = false
}
