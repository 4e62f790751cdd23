package types

import "github.com/sameerdalvi/bazario-backend/pkg/enums"

// EscrowTransaction records one on-chain interaction against the escrow.
type EscrowTransaction struct {
	Kind        string `json:"kind"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// EscrowDetails mirrors the external escrow contract state on an order.
type EscrowDetails struct {
	Address       string              `json:"address"`
	Status        enums.EscrowStatus  `json:"status"`
	BuyerAddress  string              `json:"buyer_address"`
	SellerAddress string              `json:"seller_address"`
	AmountCents   int64               `json:"amount_cents"`
	Transactions  []EscrowTransaction `json:"transactions,omitempty"`
}
