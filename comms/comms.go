// Package comms defines the process-communication contracts the query
// resolution protocol is layered on: a communicator identifying this
// process within a group of cooperating ranks, and a distributor performing
// sparse all-to-all exchanges.
//
// The package defines the contracts and plan bookkeeping only; transports
// implement them. See the inproc subpackage for the channel-based
// implementation used by tests and single-node deployments.
package comms

import "context"

// Communicator identifies this process within a group of cooperating
// processes with ranks 0..Size()-1.
type Communicator interface {
	// Rank returns this process's rank within the group.
	Rank() int

	// Size returns the number of processes in the group.
	Size() int

	// NewDistributor creates a fresh exchange plan holder for one round of
	// collective transfers. A Distributor is not safe for concurrent use
	// within a process.
	NewDistributor() Distributor
}

// Distributor performs sparse all-to-all exchanges. The usage protocol is
// strictly collective: every rank in the group must issue the same sequence
// of Prepare and Exchange calls, in the same order, including ranks with
// zero elements to send. A rank that skips a call deadlocks the group.
type Distributor interface {
	// PrepareFromDestinations computes the exchange plan from one
	// destination rank per exported row and returns how many rows this
	// process will receive. Collective.
	PrepareFromDestinations(ctx context.Context, destRanks []int32) (int, error)

	// PrepareFromGroups computes the exchange plan from a per-group
	// destination rank and an offset table delimiting variable-size groups
	// of rows. Collective.
	PrepareFromGroups(ctx context.Context, groupRanks []int32, offsets []int32) (int, error)

	// Exchange moves packetBytes bytes per row according to the prepared
	// plan. exports must hold TotalSendLength()*packetBytes bytes and
	// imports TotalReceiveLength()*packetBytes. Imports are ordered by
	// source rank ascending, preserving each source's export order, for
	// every Exchange issued against the same plan. Collective.
	Exchange(ctx context.Context, exports []byte, packetBytes int, imports []byte) error

	// TotalSendLength returns the number of rows this process exports.
	TotalSendLength() int

	// TotalReceiveLength returns the number of rows this process imports.
	TotalReceiveLength() int
}
