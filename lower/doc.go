// Package lower rewrites a module from the tile-level dialect into the
// low-level dialect plus one backend's native operations.
//
// The pipeline runs once per module in a fixed stage order: async-copy
// decomposition for backends without native support, shared-memory
// allocation and barrier insertion, function signature and call/return
// convention rewriting, identity-value materialization, and finally a
// worklist legalization that applies the rewrite rule registry to a
// fixed point. A module either lowers completely or the pipeline
// reports a typed error; partially lowered modules are never returned
// as success.
package lower
