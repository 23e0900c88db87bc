// SPDX-License-Identifier: MPL-2.0

package linker

import (
	"context"
	"slices"

	"xtcmod/pkg/constant"
	"xtcmod/pkg/repository"
	"xtcmod/pkg/version"
)

// Context is a constant.LinkerContext built from a profile and the module
// versions of a repository. It is immutable once built and safe for
// concurrent use.
type Context struct {
	defines map[string]bool
	// visible maps a structure path to its declared versions; an empty tree
	// means every version.
	visible map[string]*version.Tree[bool]
	modules map[string]*version.Tree[bool]
	self    version.Version
}

var _ constant.LinkerContext = (*Context)(nil)

// NewContext builds a context from p and the modules stored in repo. Either
// may be nil.
func NewContext(ctx context.Context, p *Profile, repo repository.Repository) (*Context, error) {
	lc := &Context{
		defines: make(map[string]bool),
		visible: make(map[string]*version.Tree[bool]),
		modules: make(map[string]*version.Tree[bool]),
	}
	if p != nil {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		for _, d := range p.Defines {
			lc.defines[d] = true
		}
		for _, v := range p.Visible {
			tree := version.NewTree[bool]()
			for _, ver := range v.Versions {
				tree.Put(ver.Normalize(), true)
			}
			lc.visible[v.Path] = tree
		}
		if !p.SelfVersion.IsZero() {
			lc.self = p.SelfVersion.Normalize()
		}
	}
	if repo == nil {
		return lc, nil
	}

	names, err := repo.Modules(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		vs, err := repo.Versions(ctx, name)
		if err != nil {
			return nil, err
		}
		tree := version.NewTree[bool]()
		for _, v := range vs {
			tree.Put(v, true)
		}
		lc.modules[name] = tree
	}
	return lc, nil
}

// Defines returns the defined option names in ascending order.
func (c *Context) Defines() []string {
	out := make([]string, 0, len(c.defines))
	for d := range c.defines {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// SelfVersion returns the version of the module being linked, if known.
func (c *Context) SelfVersion() version.Version { return c.self }

// IsSpecified implements constant.LinkerContext.
func (c *Context) IsSpecified(name string) bool { return c.defines[name] }

// IsVisible implements constant.LinkerContext. A structure is visible when
// the profile lists its path or, for a module, when the repository holds it.
func (c *Context) IsVisible(id constant.IdentityConstant) bool {
	_, ok := c.versionsOf(id)
	return ok
}

// IsVisibleVersion implements constant.LinkerContext.
func (c *Context) IsVisibleVersion(id constant.IdentityConstant, ver version.Version, exact bool) bool {
	tree, ok := c.versionsOf(id)
	switch {
	case !ok:
		return false
	case tree.IsEmpty():
		return true
	case exact:
		return tree.Contains(ver.Normalize())
	default:
		_, found := tree.FindHighestFor(ver)
		return found
	}
}

// IsVersionMatch implements constant.LinkerContext.
func (c *Context) IsVersionMatch(ver version.Version, exact bool) bool {
	if c.self.IsZero() || ver.IsZero() {
		return false
	}
	if exact {
		return c.self.Equal(ver.Normalize())
	}
	return c.self.IsSubstitutableFor(ver)
}

func (c *Context) versionsOf(id constant.IdentityConstant) (*version.Tree[bool], bool) {
	if id == nil {
		return nil, false
	}
	if tree, ok := c.visible[id.Path()]; ok {
		return tree, true
	}
	if mod, ok := id.(*constant.ModuleConstant); ok {
		tree, ok := c.modules[mod.Name()]
		return tree, ok
	}
	return nil, false
}
