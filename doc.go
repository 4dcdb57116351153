// Package distq is the cross-process query-resolution layer of a spatially
// partitioned nearest-neighbor and range search index.
//
// Each participating process (rank) owns a disjoint spatial partition and a
// local search structure over it. A query issued on one rank may need
// candidates living on other ranks; distq routes unresolved queries to the
// ranks that can answer them, moves the bulk typed data across rank
// boundaries, reassembles per-query result sets back at the origin rank
// preserving query identity, and truncates oversized result sets to each
// query's bound.
//
// # Architecture
//
//   - comms defines the communicator and sparse all-to-all distributor
//     contracts; comms/inproc implements them for ranks sharing a process.
//   - space models the execution resource running data-parallel kernels,
//     including memory spaces the transport cannot address directly.
//   - distquery implements the round's building blocks: bulk transfer,
//     result counting, query forwarding, result return, truncation, and
//     sort-by-key with companion arrays.
//   - The Resolver in this package ties one full round together:
//     forward -> local search -> return -> count -> sort -> truncate.
//
// # Collective discipline
//
// Every transfer step is collective: all ranks in the group must issue the
// same sequence of calls per round, zero-work ranks included. Skipping a
// step on one rank deadlocks the group; this is a correctness invariant,
// not a performance concern.
//
// The local search structure itself (construction, traversal, partitioning)
// is deliberately out of scope: callers supply it as a LocalSearch callback.
package distq
