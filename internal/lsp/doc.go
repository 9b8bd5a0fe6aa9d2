// Package lsp is the language-server client used to run the lint tool.
//
// The lint tool is exposed as a language server speaking JSON-RPC 2.0
// over stdio with LSP base-protocol framing. This package owns the
// subprocess and its transport:
//
//   - Transport: framing, request/response correlation, notification
//     dispatch
//   - Client: process lifecycle (stopped → starting → running →
//     stopped), the initialize handshake, the settings push, trace
//     verbosity, and published diagnostics
//
// A Client is single-use: it is constructed with a fully resolved
// Invocation, started once, and replaced (not restarted) when settings
// change. The session package owns replacement ordering.
package lsp
