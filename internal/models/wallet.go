package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletKind separates a party's balances by purpose. A party holds at most
// one wallet per (kind, currency).
type WalletKind string

const (
	WalletFund        WalletKind = "fund"        // client spendable balance
	WalletSales       WalletKind = "sales"       // system-side fee revenue pool
	WalletSettlement  WalletKind = "settlement"  // payout staging
	WalletCollections WalletKind = "collections" // system-side COD collections pool
)

// TransferKind classifies a wallet-to-wallet move. The taxonomy is extensible,
// new kinds only need a constant here and a constraint bump in the schema.
type TransferKind string

const (
	TransferPurchase     TransferKind = "purchase"
	TransferTransfer     TransferKind = "transfer"
	TransferRefund       TransferKind = "refund"
	TransferReward       TransferKind = "reward"
	TransferEscrow       TransferKind = "escrow"
	TransferDisbursement TransferKind = "disbursement"
	TransferSettlement   TransferKind = "settlement"
	TransferSale         TransferKind = "sale"
	TransferFund         TransferKind = "fund"
	TransferClaim        TransferKind = "claim"
	TransferReturn       TransferKind = "return"
)

// Wallet is the source of truth for a party's current balance in one
// currency. Balances move only through transfers, never by direct update.
// Invariant: CreditLimit <= Amount <= MaxLimit for each non-nil bound.
type Wallet struct {
	ID         int64
	PartyID    int64
	Kind       WalletKind
	CurrencyID int32
	Amount     decimal.Decimal

	// Upper bound on the balance, nil means unbounded.
	MaxLimit *decimal.Decimal

	// Lower bound on the balance, stored as <= 0, nil means unbounded.
	CreditLimit *decimal.Decimal

	Active    bool
	CreatedAt time.Time
}

// Transfer is the immutable record of one atomic move between two wallets.
type Transfer struct {
	ID           uuid.UUID
	FromWalletID int64
	ToWalletID   int64
	Kind         TransferKind
	Amount       decimal.Decimal
	Details      string
	OrderID      *int64
	IPAddress    *string
	CreatedAt    time.Time
}

// WalletLog is the append-only audit entry for one side of a transfer: the
// signed delta and the running balance of the wallet at that instant.
// Every transfer produces exactly two of these.
type WalletLog struct {
	ID             uuid.UUID
	WalletID       int64
	TransferID     uuid.UUID
	Amount         decimal.Decimal
	RunningBalance decimal.Decimal
}
