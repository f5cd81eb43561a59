// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	EntryScriptNotFoundId Id = iota + 1
	EntryScriptParseFailedId
	InterpreterNotFoundId
	WorkspaceCreateFailedId
	ArtifactWriteFailedId
	ConfigLoadFailedId
	InvalidOutputNameId
	ManifestReadFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	var extraMd strings.Builder
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			extraMd.WriteString("\n- " + string(link))
		}
		for _, link := range i.extLinks {
			extraMd.WriteString("\n- " + string(link))
		}
	}
	return render(string(i.mdMsg)+extraMd.String(), stylePath)
}

var (
	render = glamour.Render

	entryScriptNotFoundIssue = &Issue{
		id: EntryScriptNotFoundId,
		mdMsg: `
# Entry script not found!

pypack needs a readable Python script ending in ` + "`.py`" + ` as its entry point.

## Things you can try:
- Check the path for typos
- Run pypack from the project directory:
~~~
$ cd /path/to/project
$ pypack build app.py
~~~`,
	}

	entryScriptParseFailedIssue = &Issue{
		id: EntryScriptParseFailedId,
		mdMsg: `
# Failed to parse the entry script!

The entry script must be valid Python for the target interpreter. Other
modules that fail to parse are skipped with a warning, but the entry
script is where the import graph starts.

## Things you can try:
- Check the line and column reported above
- Run the script once with the target interpreter:
~~~
$ python3 -m py_compile app.py
~~~`,
		extLinks: []HttpLink{"https://peps.python.org/pep-0263/"},
	}

	interpreterNotFoundIssue = &Issue{
		id: InterpreterNotFoundId,
		mdMsg: `
# Python interpreter not available!

pypack asks the target interpreter for its search path, standard library
location and bytecode magic number. It could not run the configured one.

## Things you can try:
- Install Python 3 and make sure it is on your PATH
- Point pypack at a specific interpreter:
~~~
$ pypack build --python /usr/bin/python3.12 app.py
~~~

- Or set it once in your config:
~~~cue
interpreter: "/opt/venv/bin/python"
~~~`,
	}

	workspaceCreateFailedIssue = &Issue{
		id: WorkspaceCreateFailedId,
		mdMsg: `
# Failed to create the build workspace!

Every build writes its artifacts into a fresh ` + "`build_<name>_<time>`" + `
directory under the workspace root.

## Things you can try:
- Check that the workspace root exists and is writable
- Choose another root:
~~~
$ pypack build --workspace-root /tmp app.py
~~~`,
	}

	artifactWriteFailedIssue = &Issue{
		id: ArtifactWriteFailedId,
		mdMsg: `
# Failed to write a build artifact!

The main bytecode file or one of the category archives could not be written.

## Things you can try:
- Check free disk space in the workspace root
- Check that nothing else is writing to the workspace directory`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

pypack reads ` + "`config.cue`" + ` from its config directory and the
` + "`[tool.pypack]`" + ` table from ` + "`pyproject.toml`" + `.

## Things you can try:
- Show where pypack looks for its config:
~~~
$ pypack config path
~~~

- Print the effective configuration:
~~~
$ pypack config show
~~~

- Create a default config file:
~~~
$ pypack config init
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	invalidOutputNameIssue = &Issue{
		id: InvalidOutputNameId,
		mdMsg: `
# Invalid output name!

The output name becomes a directory and file name, so it must not contain
path separators and must not be a reserved device name such as ` + "`CON`" + `
or ` + "`NUL`" + `.

## Things you can try:
- Pass a plain name:
~~~
$ pypack build --name myapp app.py
~~~`,
	}

	manifestReadFailedIssue = &Issue{
		id: ManifestReadFailedId,
		mdMsg: `
# Failed to read the build manifest!

` + "`pypack inspect`" + ` expects a workspace directory produced by
` + "`pypack build`" + ` containing ` + "`manifest.mp`" + `.

## Things you can try:
- Pass the workspace directory printed at the end of the build
- Rebuild if the workspace was produced by an older pypack version`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Things you can try:
- Check file and directory permissions
- Run pypack from a directory you own`,
	}

	issues = map[Id]*Issue{
		entryScriptNotFoundIssue.Id():    entryScriptNotFoundIssue,
		entryScriptParseFailedIssue.Id(): entryScriptParseFailedIssue,
		interpreterNotFoundIssue.Id():    interpreterNotFoundIssue,
		workspaceCreateFailedIssue.Id():  workspaceCreateFailedIssue,
		artifactWriteFailedIssue.Id():    artifactWriteFailedIssue,
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		invalidOutputNameIssue.Id():      invalidOutputNameIssue,
		manifestReadFailedIssue.Id():     manifestReadFailedIssue,
		permissionDeniedIssue.Id():       permissionDeniedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
