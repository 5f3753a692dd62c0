package bridge

// Package bridge is the flat, foreign-caller-facing surface of the session
// layer. Every operation is a plain function over primitive scalars: uint64
// handles, strings, and int32 status codes. Failure is signaled by a
// reserved sentinel -- handle 0, nil payload, or status -1 -- and the
// diagnostic message is retrievable via LastError, because the boundary
// calling convention cannot carry a structured error object.
//
// Text payloads returned by Execute, ExecuteWithParams, StmtExecute and
// FetchNext are leased from an internal pool and must be released with
// FreeText once the caller has copied them out.
//
// The package fronts one process-wide session.Manager, created at init and
// replaceable once at startup via Configure. Handles do not survive a
// process restart.
