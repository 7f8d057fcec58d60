package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/repositories"
)

const (
	walletIDPrefix  = "wal_"
	defaultCurrency = "INR"
)

var (
	// ErrWalletInvalidInput signals the caller provided invalid data.
	ErrWalletInvalidInput = errors.New("wallet: invalid input")
	// ErrWalletNotFound indicates no wallet exists for the user.
	ErrWalletNotFound = errors.New("wallet: not found")
	// ErrWalletInsufficientFunds indicates the balance cannot cover a debit.
	ErrWalletInsufficientFunds = errors.New("wallet: insufficient funds")
	// ErrWalletConflict indicates a concurrent modification collided.
	ErrWalletConflict = errors.New("wallet: conflict")
)

// WalletServiceDeps bundles collaborators required to construct the wallet service.
type WalletServiceDeps struct {
	Wallets     repositories.WalletRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type walletService struct {
	wallets repositories.WalletRepository
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewWalletService wires dependencies into a concrete WalletService implementation.
func NewWalletService(deps WalletServiceDeps) (WalletService, error) {
	if deps.Wallets == nil {
		return nil, errors.New("wallet service: wallet repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return walletIDPrefix + ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &walletService{
		wallets: deps.Wallets,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *walletService) EnsureWallet(ctx context.Context, cmd EnsureWalletCommand) (Wallet, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Wallet{}, fmt.Errorf("%w: user id is required", ErrWalletInvalidInput)
	}

	existing, err := s.wallets.FindByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !isWalletNotFound(err) {
		return Wallet{}, translateWalletError(err)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	now := s.clock()
	wallet := domain.Wallet{
		ID:        s.newID(),
		UserID:    userID,
		Balance:   0,
		Currency:  currency,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		// A concurrent registration may have won the create.
		if created, findErr := s.wallets.FindByUser(ctx, userID); findErr == nil {
			return created, nil
		}
		return Wallet{}, translateWalletError(err)
	}

	s.logger(ctx, "wallet.created", map[string]any{"userId": userID, "currency": currency})
	return wallet, nil
}

func (s *walletService) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Wallet{}, fmt.Errorf("%w: user id is required", ErrWalletInvalidInput)
	}
	wallet, err := s.wallets.FindByUser(ctx, userID)
	if err != nil {
		return Wallet{}, translateWalletError(err)
	}
	return wallet, nil
}

func (s *walletService) ListTransactions(ctx context.Context, cmd ListWalletTransactionsCommand) ([]WalletTransaction, error) {
	wallet, err := s.GetWallet(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	entries := make([]WalletTransaction, 0, len(wallet.Transactions))
	for i := len(wallet.Transactions) - 1; i >= 0; i-- {
		entries = append(entries, wallet.Transactions[i])
		if cmd.Limit > 0 && len(entries) >= cmd.Limit {
			break
		}
	}
	return entries, nil
}

func (s *walletService) Credit(ctx context.Context, cmd WalletAdjustmentCommand) (Wallet, error) {
	return s.adjust(ctx, cmd, false)
}

func (s *walletService) Debit(ctx context.Context, cmd WalletAdjustmentCommand) (Wallet, error) {
	return s.adjust(ctx, cmd, true)
}

func (s *walletService) adjust(ctx context.Context, cmd WalletAdjustmentCommand, debit bool) (Wallet, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Wallet{}, fmt.Errorf("%w: user id is required", ErrWalletInvalidInput)
	}
	if cmd.Amount <= 0 {
		return Wallet{}, fmt.Errorf("%w: amount must be positive", ErrWalletInvalidInput)
	}
	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		return Wallet{}, fmt.Errorf("%w: description is required", ErrWalletInvalidInput)
	}

	req := repositories.WalletEntryRequest{
		UserID:      userID,
		Amount:      cmd.Amount,
		Description: description,
		OrderRef:    strings.TrimSpace(cmd.OrderRef),
		Now:         s.clock(),
	}

	var (
		wallet Wallet
		err    error
	)
	if debit {
		wallet, err = s.wallets.Debit(ctx, req)
	} else {
		wallet, err = s.wallets.Credit(ctx, req)
	}
	if err != nil {
		return Wallet{}, translateWalletError(err)
	}

	event := "wallet.credited"
	if debit {
		event = "wallet.debited"
	}
	s.logger(ctx, event, map[string]any{
		"userId":  userID,
		"amount":  cmd.Amount,
		"actorId": cmd.ActorID,
	})
	return wallet, nil
}

func translateWalletError(err error) error {
	if err == nil {
		return nil
	}
	var walletErr *repositories.WalletError
	if errors.As(err, &walletErr) {
		switch walletErr.Code {
		case repositories.WalletErrorNotFound:
			return fmt.Errorf("%w: %s", ErrWalletNotFound, walletErr.Message)
		case repositories.WalletErrorInsufficientFunds:
			return fmt.Errorf("%w: %s", ErrWalletInsufficientFunds, walletErr.Message)
		case repositories.WalletErrorInvalidAmount:
			return fmt.Errorf("%w: %s", ErrWalletInvalidInput, walletErr.Message)
		case repositories.WalletErrorConflict:
			return fmt.Errorf("%w: %s", ErrWalletConflict, walletErr.Message)
		}
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrWalletNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrWalletConflict, err)
		}
	}
	return err
}

func isWalletNotFound(err error) bool {
	var walletErr *repositories.WalletError
	if errors.As(err, &walletErr) && walletErr.Code == repositories.WalletErrorNotFound {
		return true
	}
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
