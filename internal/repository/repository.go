package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shipworks/backoffice/internal/models"
)

// PartyRepo manages identities and their lookups.
type PartyRepo interface {
	// Create party with provided attributes
	CreateParty(ctx context.Context, party models.Party) (models.Party, error)

	// Name the party as an organization
	CreateOrganization(ctx context.Context, partyID int64, name string) error

	AddRole(ctx context.Context, partyID int64, role string) error
	AddRelationship(ctx context.Context, fromPartyID int64, relType string, toPartyID int64) error

	// Get party by id
	// If party not found must return apperrors.ErrPartyNotFound
	GetParty(ctx context.Context, partyID int64) (models.Party, error)

	// Resolve a currency code to its internal id
	// If the code is unknown must return apperrors.ErrUnknownCurrency
	CurrencyID(ctx context.Context, code string) (int32, error)
}

// WalletRepo persists wallets, transfers, and the wallet audit log.
// Balance mutation goes through the wallet service only; the repo offers the
// raw pieces (locking, amount update, rows) it composes in one transaction.
type WalletRepo interface {
	CreateWallet(ctx context.Context, wallet models.Wallet) (models.Wallet, error)

	// Find the single active wallet for (party, kind, currency) where the
	// owning party is active too
	// If absent must return apperrors.ErrWalletNotFound
	Find(ctx context.Context, partyID int64, kind models.WalletKind, currencyID int32) (models.Wallet, error)

	// Lock the given wallets with row-level exclusive locks and return their
	// current state. Rows are locked in ascending id order so concurrent
	// transfers touching the same pair never deadlock.
	LockForTransfer(ctx context.Context, ids []int64) ([]models.Wallet, error)

	SetAmount(ctx context.Context, walletID int64, amount decimal.Decimal) error

	CreateTransfer(ctx context.Context, transfer models.Transfer) (models.Transfer, error)
	GetTransfer(ctx context.Context, id uuid.UUID) (models.Transfer, error)

	CreateLog(ctx context.Context, log models.WalletLog) (models.WalletLog, error)
	ListLogs(ctx context.Context, walletID int64) ([]models.WalletLog, error)
}

// AddressRepo persists content-hashed addresses and resolves countries.
type AddressRepo interface {
	// Upsert stores the address, reusing the existing row when the same
	// party already has one with the same content hash. On reuse only
	// title, fax number, and remarks are refreshed.
	Upsert(ctx context.Context, address models.Address) (models.Address, error)

	Get(ctx context.Context, id int64) (models.Address, error)

	// Resolve a country code to a location id
	// If the code is unknown must return apperrors.ErrUnknownCountry
	CountryID(ctx context.Context, code string) (int64, error)

	CreateCountry(ctx context.Context, code string, name string) (int64, error)
}

// OrderRepo persists orders and their items, segments, and events.
type OrderRepo interface {
	// NextID draws the next order id from the sequence. Ids are monotonic
	// but gap-tolerant.
	NextID(ctx context.Context) (int64, error)

	CreateOrder(ctx context.Context, order models.Order) (models.Order, error)

	// If order not found must return apperrors.ErrOrderNotFound
	GetOrder(ctx context.Context, orderID int64) (models.Order, error)

	// UpdateStatus writes status, status_updated_at, and the tat map.
	UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus, tat models.TAT) error

	// UpdateDetails rewrites the mutable non-money order fields.
	UpdateDetails(ctx context.Context, order models.Order) error

	SetActiveSegment(ctx context.Context, orderID int64, segmentID *int64) error
	SetFlagged(ctx context.Context, orderID int64) error

	IncrementPickupAttempts(ctx context.Context, orderID int64) (int, error)
	IncrementDeliveryAttempts(ctx context.Context, orderID int64) (int, error)

	CreateItem(ctx context.Context, item models.OrderItem) (models.OrderItem, error)
	ListItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)

	CreateSegment(ctx context.Context, segment models.OrderSegment) (models.OrderSegment, error)
	ListSegments(ctx context.Context, orderID int64) ([]models.OrderSegment, error)

	// NextSegment returns the first segment after the given one.
	// If there is none must return apperrors.ErrSegmentNotFound
	NextSegment(ctx context.Context, orderID int64, afterSegmentID int64) (models.OrderSegment, error)

	// DeleteSegments removes all segments of the order together with their
	// events. Used when an order update recreates the route wholesale.
	DeleteSegments(ctx context.Context, orderID int64) error

	CreateEvent(ctx context.Context, event models.OrderEvent) (models.OrderEvent, error)
	ListEvents(ctx context.Context, segmentID int64) ([]models.OrderEvent, error)
}

// ChargeRepo persists the one-per-order payment record.
type ChargeRepo interface {
	Create(ctx context.Context, charge models.Charge) (models.Charge, error)

	// If the order has no charge must return apperrors.ErrChargeNotFound
	Get(ctx context.Context, orderID int64) (models.Charge, error)

	MarkPaid(ctx context.Context, orderID int64, tendered decimal.Decimal, change decimal.Decimal, remarks *string) (models.Charge, error)
}

// ClaimRepo persists the one-per-order dispute record.
type ClaimRepo interface {
	// Create the claim
	// If the order already has one must return apperrors.ErrAlreadyClaimed
	Create(ctx context.Context, claim models.Claim) (models.Claim, error)

	// If the order has no claim must return apperrors.ErrClaimNotFound
	Get(ctx context.Context, orderID int64) (models.Claim, error)

	UpdateStatus(ctx context.Context, orderID int64, status models.ClaimStatus, remarks *string, tat models.ClaimTAT) error
	SetReference(ctx context.Context, orderID int64, referenceID string) error
}

// CourierRepo loads the courier registry.
type CourierRepo interface {
	// ListActive returns active couriers with their hubs attached, sorted by
	// ascending priority.
	// If there are none must return apperrors.ErrNoCouriers
	ListActive(ctx context.Context) ([]models.Courier, error)

	// NextReference draws from the shared courier tracking sequence.
	NextReference(ctx context.Context) (int64, error)
}

// Storage bundles the repositories over one connection or transaction.
type Storage interface {
	Party() PartyRepo
	Wallet() WalletRepo
	Address() AddressRepo
	Order() OrderRepo
	Charge() ChargeRepo
	Claim() ClaimRepo
	Courier() CourierRepo

	// InTx runs fn inside a transaction and passes it a Storage bound to
	// that transaction. Rolls back on error, commits otherwise. Nesting is
	// allowed; inner calls become savepoints of the outer transaction.
	InTx(ctx context.Context, fn func(Storage) error) error
}
