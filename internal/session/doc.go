// Package session owns the lint server lifecycle per workspace scope.
//
// A Manager holds one Session per workspace folder (or a single global
// session when no folders are known). Each session owns at most one
// live client handle plus the subscriptions registered against it, and
// serializes restarts through a coalescing queue: while a restart is in
// flight further requests collapse into one rerun performed after it
// finishes, so the last requested state always wins and no two restarts
// for the same scope ever interleave.
//
// A restart is a replacement, never an in-place reconfiguration: the
// old handle is stopped and all of its tracked subscriptions disposed
// before the new handle is constructed. Restarts are triggered by
// activation, interpreter switches, an explicit restart command, and
// changes to any setting on the restart watch list.
package session
