// Package ir defines the intermediate representation shared by the
// tile-level GPU dialect, the low-level pointer/register dialect, and
// the native dialects of the supported backends (NVVM, GENX, ROCDL).
//
// A Module owns its functions; each function owns flat arenas of
// operations and values addressed by small integer handles. Rewrite
// passes mutate the graph in place: an erased operation stays in the
// arena flagged dead so that stale handles held by a worklist remain
// safe to inspect.
package ir
