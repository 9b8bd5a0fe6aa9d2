package config

import (
	"os"
	"runtime"
	"strings"
)

// interpreterToken expands to the interpreter command when it is the
// entire string element. It is the one token that changes output arity.
const interpreterToken = "${interpreter}"

// Workspace identifies one workspace folder known to the session.
type Workspace struct {
	// Name is the display name used by ${workspaceFolder:NAME}.
	Name string

	// Path is the absolute filesystem path of the folder.
	Path string

	// URI is the canonical URI used as the scope key.
	URI string
}

// ResolveContext carries the inputs for one resolution pass. Build it
// once per pass; it snapshots the environment lazily and is not reused
// across passes.
type ResolveContext struct {
	// Workspace is the active workspace, if any.
	Workspace *Workspace

	// Workspaces are all folders known to the session, for scoped
	// ${workspaceFolder:NAME} lookups.
	Workspaces []Workspace

	// Interpreter is the command spliced in place of ${interpreter}
	// elements. Nil disables splicing.
	Interpreter []string

	// Environ is the environment snapshot in "KEY=value" form.
	// Nil means os.Environ().
	Environ []string

	// subs is the substitution table, built on first use.
	subs [][2]string
}

// substitutions builds the ordered token table. Keys are distinct fixed
// strings, so replacement order does not affect the result. Tokens whose
// inputs are unavailable (no home directory, unknown workspace name,
// unset environment variable) are simply absent from the table and stay
// literal in the output.
func (c *ResolveContext) substitutions() [][2]string {
	if c.subs != nil {
		return c.subs
	}

	environ := c.Environ
	if environ == nil {
		environ = os.Environ()
	}

	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}

	subs := make([][2]string, 0, len(env)+8)

	home := env["HOME"]
	if runtime.GOOS == "windows" && home == "" {
		home = env["USERPROFILE"]
	}
	if home != "" {
		subs = append(subs,
			[2]string{"${userHome}", home},
			[2]string{"~/", home + "/"},
			[2]string{`~\`, home + `\`},
		)
	}

	if c.Workspace != nil {
		subs = append(subs, [2]string{"${workspaceFolder}", c.Workspace.Path})
	}
	for i := range c.Workspaces {
		ws := &c.Workspaces[i]
		subs = append(subs, [2]string{"${workspaceFolder:" + ws.Name + "}", ws.Path})
	}

	if cwd, err := os.Getwd(); err == nil {
		subs = append(subs, [2]string{"${cwd}", cwd})
	}

	for name, value := range env {
		if value != "" {
			subs = append(subs, [2]string{"${env:" + name + "}", value})
		}
	}

	c.subs = subs
	return subs
}

// ResolveString expands all recognized placeholder tokens in a single
// string. The splice token is not handled here; a lone ${interpreter}
// passes through unchanged.
func (c *ResolveContext) ResolveString(s string) string {
	for _, sub := range c.substitutions() {
		s = strings.ReplaceAll(s, sub[0], sub[1])
	}
	return s
}

// ResolveStrings expands placeholder tokens across a sequence. Output
// length equals input length except where an element is exactly the
// ${interpreter} token: that element is replaced by every element of the
// interpreter command in order, or dropped when the command is empty.
func (c *ResolveContext) ResolveStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == interpreterToken && c.Interpreter != nil {
			out = append(out, c.Interpreter...)
			continue
		}
		out = append(out, c.ResolveString(v))
	}
	return out
}
