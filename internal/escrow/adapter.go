// Package escrow talks to the on-chain escrow contract over JSON-RPC.
// On-chain success must precede any local state mutation; a revert is
// terminal and aborts the local change.
package escrow

import "context"

// Receipt is the on-chain acknowledgement for a state transition.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
}

// Adapter mirrors the escrow contract's transitions. Implementations must
// distinguish transport failures (retryable) from contract reverts
// (terminal).
type Adapter interface {
	// RaiseDispute moves the escrow at address into Disputed on behalf of
	// the actor.
	RaiseDispute(ctx context.Context, address, actorAddress string) (*Receipt, error)
	// Resolve releases the escrow to the winner's address.
	Resolve(ctx context.Context, address, winnerAddress string) (*Receipt, error)
	// IsInitialized reports whether the adapter has a working RPC endpoint
	// and signer.
	IsInitialized() bool
}
