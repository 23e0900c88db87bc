// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	FileNotFoundId Id = iota + 1
	ModuleDecodeFailedId
	ModuleNotFoundId
	VersionNotAllowedId
	DependencyCycleId
	RepositoryCorruptId
	ConfigLoadFailedId
	InvalidProfileId
	ValidationFailedId
	PermissionDeniedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // pages describing the file format or the tool
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id                   { return i.id }
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }
func (i *Issue) DocLinks() []HttpLink     { return slices.Clone(i.docLinks) }
func (i *Issue) ExtLinks() []HttpLink     { return slices.Clone(i.extLinks) }

// Render renders the issue as terminal markdown using the glamour style at
// stylePath ("" selects the default style).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), cmp.Or(stylePath, "auto"))
}

var (
	render = glamour.Render

	formatDoc HttpLink = "https://xtclang.org/docs/module-format"

	fileNotFoundIssue = &Issue{
		id: FileNotFoundId,
		mdMsg: `
# File not found!

The module file you asked for does not exist or is not a regular file.

## Things you can try:
- Check the path for typos
- List the modules stored in your repository:
~~~
$ xtcmod repo list
~~~`,
	}

	moduleDecodeFailedIssue = &Issue{
		id: ModuleDecodeFailedId,
		mdMsg: `
# Failed to read the module file!

The file is not a valid module image. It may be truncated, written by a
newer toolchain, or not a module file at all.

## Things you can try:
- Check the file header and version:
~~~
$ xtcmod info path/to/module.xtc
~~~
- Rebuild the module with a compiler that writes format 0.1 or older
- If the file came from a repository, verify the repository:
~~~
$ xtcmod repo verify
~~~`,
		docLinks: []HttpLink{formatDoc},
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

A module that the linked module depends on is not present in any repository
on the module path.

## Things you can try:
- Store the missing module:
~~~
$ xtcmod repo store path/to/dependency.xtc
~~~
- Add another repository to the module path with --repo
- If the dependency is optional, it is safe to ignore this message`,
	}

	versionNotAllowedIssue = &Issue{
		id: VersionNotAllowedId,
		mdMsg: `
# No acceptable version!

The repository holds the module, but none of its versions is allowed by the
dependency's version constraints.

## Things you can try:
- List the stored versions:
~~~
$ xtcmod repo list
~~~
- Store a version that satisfies the allowed versions
- Relax the allowed or avoided versions of the dependency and recompile`,
		docLinks: []HttpLink{formatDoc},
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Two or more modules depend on each other, so no module can be linked first.

## Things you can try:
- Follow the cycle shown in the error and remove one of the dependencies
- Embed one module into the other instead of depending on it`,
	}

	repositoryCorruptIssue = &Issue{
		id: RepositoryCorruptId,
		mdMsg: `
# Repository is corrupt!

A stored module does not match the digest recorded in the repository index,
or the index cannot be read.

## Things you can try:
- Find the damaged entries:
~~~
$ xtcmod repo verify
~~~
- Rebuild the index from the files on disk:
~~~
$ xtcmod repo reindex
~~~
- Store the affected modules again`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Show the effective configuration:
~~~
$ xtcmod config show
~~~
- Recreate a default configuration file:
~~~
$ xtcmod config init
~~~
- Check the file for CUE syntax errors`,
	}

	invalidProfileIssue = &Issue{
		id: InvalidProfileId,
		mdMsg: `
# Invalid linker profile!

The linker profile must be a TOML document with the keys ` + "`defines`" + `,
` + "`self_version`" + ` and ` + "`visible`" + `.

## Example profile:
~~~toml
defines = ["debug"]
self_version = "1.2"

[[visible]]
path = "json.xtclang.org"
versions = ["1.0", "1.1"]
~~~`,
	}

	validationFailedIssue = &Issue{
		id: ValidationFailedId,
		mdMsg: `
# Module validation failed!

The module structure has errors that prevent it from being linked.

## Things you can try:
- Show all diagnostics, not just the first errors:
~~~
$ xtcmod validate --max-errors 0 path/to/module.xtc
~~~
- Recompile the module from source`,
		docLinks: []HttpLink{formatDoc},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

The file or directory cannot be read or written by the current user.

## Things you can try:
- Check the permissions of the repository directory
- Use a repository under your home directory with --repo`,
	}

	issues = map[Id]*Issue{
		fileNotFoundIssue.Id():       fileNotFoundIssue,
		moduleDecodeFailedIssue.Id(): moduleDecodeFailedIssue,
		moduleNotFoundIssue.Id():     moduleNotFoundIssue,
		versionNotAllowedIssue.Id():  versionNotAllowedIssue,
		dependencyCycleIssue.Id():    dependencyCycleIssue,
		repositoryCorruptIssue.Id():  repositoryCorruptIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		invalidProfileIssue.Id():     invalidProfileIssue,
		validationFailedIssue.Id():   validationFailedIssue,
		permissionDeniedIssue.Id():   permissionDeniedIssue,
	}
)

// Values returns every known issue in id order.
func Values() []*Issue {
	out := maps.Values(issues)
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
