// Package config resolves lintstorm settings for workspace scopes.
//
// Configuration values come from a read-only store (see the store
// subpackage) keyed by "lintstorm.<option>". The Loader reads each
// option with its documented default, expands placeholder tokens through
// a fixed substitution table, and produces an immutable Settings record.
// A fresh record is built on every trigger; records are never mutated
// after construction.
//
// # Placeholder tokens
//
// String options may contain these tokens, replaced by literal substring
// substitution:
//
//   - ${userHome}, ~/ and ~\  the resolved home directory
//   - ${workspaceFolder}      the active workspace's absolute path
//   - ${workspaceFolder:NAME} the path of the named workspace
//   - ${cwd}                  the process working directory
//   - ${env:NAME}             the environment variable NAME, if set
//   - ${interpreter}          splices the interpreter command when the
//     token is an entire list element
//
// Tokens that cannot be resolved stay literal; the tool receiving the
// value produces its own error, which is more useful than failing here.
//
// # Scopes
//
// Resolve handles one workspace, ResolveAll scans every known workspace,
// and ResolveGlobal reads user-level values only, never picking up a
// workspace override.
package config
