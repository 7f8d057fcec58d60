package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/pravesh-commerce/api/internal/domain"
	pfirestore "github.com/pravesh-commerce/api/internal/platform/firestore"
	"github.com/pravesh-commerce/api/internal/repositories"
)

const walletsCollection = "wallets"

// WalletRepository stores one wallet document per user, keyed by user ID.
// The ledger is embedded in the document so the balance and its entries
// always change in the same write.
type WalletRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[walletDocument]
}

// NewWalletRepository constructs a Firestore-backed wallet repository.
func NewWalletRepository(provider *pfirestore.Provider) (*WalletRepository, error) {
	if provider == nil {
		return nil, errors.New("wallet repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[walletDocument](provider, walletsCollection, nil, nil)
	return &WalletRepository{provider: provider, base: base}, nil
}

// Create persists a fresh wallet, failing with a conflict when one already exists.
func (r *WalletRepository) Create(ctx context.Context, wallet domain.Wallet) error {
	if r == nil || r.provider == nil {
		return errors.New("wallet repository not initialised")
	}
	uid := strings.TrimSpace(wallet.UserID)
	if uid == "" {
		return errors.New("wallet repository: user id is required")
	}

	ref, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, newWalletDocument(wallet)); err != nil {
		return pfirestore.WrapError("wallets.create", err)
	}
	return nil
}

// FindByUser loads the wallet for the given user.
func (r *WalletRepository) FindByUser(ctx context.Context, userID string) (domain.Wallet, error) {
	if r == nil || r.base == nil {
		return domain.Wallet{}, errors.New("wallet repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Wallet{}, errors.New("wallet repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Wallet{}, repositories.NewWalletError(repositories.WalletErrorNotFound, fmt.Sprintf("wallet for user %s not found", uid), err)
		}
		return domain.Wallet{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Credit adds the amount to the wallet and appends the ledger entry.
func (r *WalletRepository) Credit(ctx context.Context, req repositories.WalletEntryRequest) (domain.Wallet, error) {
	return r.mutate(ctx, "wallets.credit", req, false)
}

// Debit subtracts the amount from the wallet and appends the ledger entry.
// Fails when the balance would go negative.
func (r *WalletRepository) Debit(ctx context.Context, req repositories.WalletEntryRequest) (domain.Wallet, error) {
	return r.mutate(ctx, "wallets.debit", req, true)
}

func (r *WalletRepository) mutate(ctx context.Context, op string, req repositories.WalletEntryRequest, debit bool) (domain.Wallet, error) {
	if r == nil || r.provider == nil {
		return domain.Wallet{}, errors.New("wallet repository not initialised")
	}
	uid := strings.TrimSpace(req.UserID)
	if uid == "" {
		return domain.Wallet{}, errors.New("wallet repository: user id is required")
	}
	if req.Amount <= 0 {
		return domain.Wallet{}, repositories.NewWalletError(repositories.WalletErrorInvalidAmount, fmt.Sprintf("amount must be positive, got %d", req.Amount), nil)
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var updated domain.Wallet
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewWalletError(repositories.WalletErrorNotFound, fmt.Sprintf("wallet for user %s not found", uid), err)
			}
			return err
		}
		var doc walletDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode wallet %s: %w", uid, err)
		}

		amount := req.Amount
		if debit {
			amount = -amount
		}
		if err := doc.applyEntry(amount, req.Description, req.OrderRef, now); err != nil {
			return err
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = doc.toDomain(uid)
		return nil
	})
	if err != nil {
		return domain.Wallet{}, wrapWalletError(op, err)
	}
	return updated, nil
}

// Document mapping -----------------------------------------------------------

type walletDocument struct {
	Balance      int64                     `firestore:"balance"`
	Currency     string                    `firestore:"currency"`
	Transactions []walletLedgerDocument    `firestore:"transactions"`
	Version      int64                     `firestore:"version"`
	CreatedAt    time.Time                 `firestore:"createdAt"`
	UpdatedAt    time.Time                 `firestore:"updatedAt"`
}

type walletLedgerDocument struct {
	Amount      int64     `firestore:"amount"`
	Description string    `firestore:"description"`
	OrderRef    string    `firestore:"orderRef,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// applyEntry adjusts the balance by amount (signed) and appends the matching
// ledger entry, keeping balance == sum(transactions) within this document.
func (d *walletDocument) applyEntry(amount int64, description, orderRef string, now time.Time) error {
	next := d.Balance + amount
	if next < 0 {
		return repositories.NewWalletError(repositories.WalletErrorInsufficientFunds, fmt.Sprintf("balance %d cannot cover %d", d.Balance, -amount), nil)
	}
	d.Balance = next
	d.Transactions = append(d.Transactions, walletLedgerDocument{
		Amount:      amount,
		Description: strings.TrimSpace(description),
		OrderRef:    strings.TrimSpace(orderRef),
		CreatedAt:   now,
	})
	d.Version++
	d.UpdatedAt = now
	return nil
}

func newWalletDocument(wallet domain.Wallet) walletDocument {
	entries := make([]walletLedgerDocument, len(wallet.Transactions))
	for i, entry := range wallet.Transactions {
		var orderRef string
		if entry.OrderRef != nil {
			orderRef = strings.TrimSpace(*entry.OrderRef)
		}
		entries[i] = walletLedgerDocument{
			Amount:      entry.Amount,
			Description: strings.TrimSpace(entry.Description),
			OrderRef:    orderRef,
			CreatedAt:   entry.CreatedAt.UTC(),
		}
	}
	return walletDocument{
		Balance:      wallet.Balance,
		Currency:     strings.ToUpper(strings.TrimSpace(wallet.Currency)),
		Transactions: entries,
		Version:      wallet.Version,
		CreatedAt:    wallet.CreatedAt.UTC(),
		UpdatedAt:    wallet.UpdatedAt.UTC(),
	}
}

func (d walletDocument) toDomain(userID string) domain.Wallet {
	entries := make([]domain.WalletTransaction, len(d.Transactions))
	for i, entry := range d.Transactions {
		tx := domain.WalletTransaction{
			Amount:      entry.Amount,
			Description: entry.Description,
			CreatedAt:   entry.CreatedAt,
		}
		if entry.OrderRef != "" {
			orderRef := entry.OrderRef
			tx.OrderRef = &orderRef
		}
		entries[i] = tx
	}
	return domain.Wallet{
		ID:           userID,
		UserID:       userID,
		Balance:      d.Balance,
		Currency:     d.Currency,
		Transactions: entries,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func wrapWalletError(op string, err error) error {
	if err == nil {
		return nil
	}
	var walletErr *repositories.WalletError
	if errors.As(err, &walletErr) {
		if walletErr.Op == "" {
			walletErr.Op = op
		}
		return walletErr
	}
	return pfirestore.WrapError(op, err)
}

var _ repositories.WalletRepository = (*WalletRepository)(nil)
