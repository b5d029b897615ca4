package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/repository"
)

func newSettlementFixture(settings staticSettings) (*SettlementService, *memStore, *recordingNotifier) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	return NewSettlementService(store, settings, notifier, nil), store, notifier
}

func TestSettlementService_Transfer_DebitsAndNotifies(t *testing.T) {
	svc, store, notifier := newSettlementFixture(staticSettings{})
	customer := store.addUser(models.UserRoleCustomer, 40)
	provider := store.addUser(models.UserRoleMechanic, 0)

	tr, err := svc.Transfer(context.Background(), TransferRequest{
		CustomerID:   customer,
		ProviderID:   provider,
		JobProcessID: uuid.New(),
		Amount:       decimal.NewFromInt(10),
		Type:         models.TransactionTypeService,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCreated, tr.Status)
	assert.True(t, decimal.NewFromInt(30).Equal(store.wallet(customer)))
	// перевод в created зачисляется исполнителю только после завершения
	assert.True(t, store.wallet(provider).IsZero())
	require.Len(t, notifier.to(provider), 1)
	assert.Contains(t, notifier.to(provider)[0].Message, "$10.00")
}

func TestSettlementService_Transfer_NegativeAmount(t *testing.T) {
	svc, store, _ := newSettlementFixture(staticSettings{})
	customer := store.addUser(models.UserRoleCustomer, 40)

	_, err := svc.Transfer(context.Background(), TransferRequest{
		CustomerID: customer,
		ProviderID: uuid.New(),
		Amount:     decimal.NewFromInt(-1),
		Type:       models.TransactionTypeService,
	})
	assert.ErrorIs(t, err, apperror.ErrNegativeAmount)
	assert.True(t, decimal.NewFromInt(40).Equal(store.wallet(customer)))
}

func TestSettlementService_Transfer_InsufficientFundsCreatesNothing(t *testing.T) {
	svc, store, notifier := newSettlementFixture(staticSettings{})
	customer := store.addUser(models.UserRoleCustomer, 30)
	provider := store.addUser(models.UserRoleMechanic, 0)
	jpID := uuid.New()

	_, err := svc.Transfer(context.Background(), TransferRequest{
		CustomerID:   customer,
		ProviderID:   provider,
		JobProcessID: jpID,
		Amount:       decimal.NewFromInt(35),
		Type:         models.TransactionTypeService,
	})
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)
	assert.True(t, apperror.IsInsufficientFunds(err))
	assert.Empty(t, store.transactionsOf(jpID))
	assert.True(t, decimal.NewFromInt(30).Equal(store.wallet(customer)))
	assert.Empty(t, notifier.sent)
}

func TestSettlementService_Transfer_UnknownPayer(t *testing.T) {
	svc, _, _ := newSettlementFixture(staticSettings{})

	_, err := svc.Transfer(context.Background(), TransferRequest{
		CustomerID: uuid.New(),
		ProviderID: uuid.New(),
		Amount:     decimal.NewFromInt(1),
		Type:       models.TransactionTypeService,
	})
	assert.ErrorIs(t, err, apperror.ErrUserNotFound)
}

func TestSettlementService_ImmediateSuccessTakesCommission(t *testing.T) {
	svc, store, _ := newSettlementFixture(staticSettings{models.SettingCommissionRate: decimal.NewFromInt(10)})
	customer := store.addUser(models.UserRoleCustomer, 100)
	provider := store.addUser(models.UserRoleMechanic, 0)

	_, err := svc.Transfer(context.Background(), TransferRequest{
		CustomerID:   customer,
		ProviderID:   provider,
		JobProcessID: uuid.New(),
		Amount:       decimal.NewFromInt(50),
		Type:         models.TransactionTypeTransport,
		Status:       models.TransactionStatusSuccess,
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(45).Equal(store.wallet(provider)))
	assert.True(t, decimal.NewFromInt(5).Equal(store.balance(models.BalanceKeyCharge)))
}

func TestSettlementService_FinalizeIsIdempotent(t *testing.T) {
	svc, store, _ := newSettlementFixture(staticSettings{})
	ctx := context.Background()
	customer := store.addUser(models.UserRoleCustomer, 0)
	provider := store.addUser(models.UserRoleMechanic, 0)
	jpID := uuid.New()

	store.addTransaction(models.Transaction{CustomerID: customer, ProviderID: provider, JobProcessID: jpID,
		Type: models.TransactionTypeTransport, Amount: decimal.NewFromInt(10), Status: models.TransactionStatusSuccess})
	store.addTransaction(models.Transaction{CustomerID: customer, ProviderID: provider, JobProcessID: jpID,
		Type: models.TransactionTypeService, Amount: decimal.NewFromInt(35), Status: models.TransactionStatusCreated})

	finalize := func() []models.Transaction {
		var released []models.Transaction
		err := store.InTx(ctx, func(tx repository.TxStore) error {
			var err error
			released, err = svc.FinalizeTx(ctx, tx, jpID)
			return err
		})
		require.NoError(t, err)
		return released
	}

	first := finalize()
	require.Len(t, first, 1)
	assert.Equal(t, models.TransactionTypeService, first[0].Type)

	second := finalize()
	assert.Empty(t, second)

	for _, tr := range store.transactionsOf(jpID) {
		assert.Equal(t, models.TransactionStatusSuccess, tr.Status)
	}
	assert.True(t, decimal.NewFromInt(35).Equal(store.wallet(provider)))
}

func TestSettlementService_FinalizeKeepsSettledOutcomes(t *testing.T) {
	svc, store, _ := newSettlementFixture(staticSettings{})
	ctx := context.Background()
	provider := store.addUser(models.UserRoleMechanic, 0)
	jpID := uuid.New()
	refunded := store.addTransaction(models.Transaction{ProviderID: provider, JobProcessID: jpID,
		Type: models.TransactionTypeService, Amount: decimal.NewFromInt(35), Status: models.TransactionStatusRefunded})

	err := store.InTx(ctx, func(tx repository.TxStore) error {
		_, err := svc.FinalizeTx(ctx, tx, jpID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefunded, store.transaction(refunded.ID).Status)
	assert.True(t, store.wallet(provider).IsZero())
}

func TestSettlementService_RefundRequestedThenRefunded(t *testing.T) {
	svc, store, notifier := newSettlementFixture(staticSettings{})
	ctx := context.Background()
	customer := store.addUser(models.UserRoleCustomer, 0)
	provider := store.addUser(models.UserRoleMechanic, 0)
	jpID := uuid.New()
	tr := store.addTransaction(models.Transaction{CustomerID: customer, ProviderID: provider, JobProcessID: jpID,
		Type: models.TransactionTypeService, Amount: decimal.NewFromInt(35), Status: models.TransactionStatusCreated})

	requested, err := svc.RequestRefund(ctx, RefundRequest{
		CustomerID:   customer,
		JobProcessID: jpID,
		Type:         models.TransactionTypeService,
		Details:      "wheel was not fixed",
		Images:       []string{"a.jpg", "b.png"},
	})
	require.NoError(t, err)
	assert.True(t, requested.IsRefundRequested)
	assert.Equal(t, []string{"a.jpg", "b.png"}, []string(store.transaction(tr.ID).RefundImages))

	decided, err := svc.DecideRefund(ctx, tr.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefunded, decided.Status)
	assert.False(t, store.transaction(tr.ID).IsRefundRequested)
	assert.True(t, decimal.NewFromInt(35).Equal(store.wallet(customer)))
	assert.True(t, store.wallet(provider).IsZero())
	assert.Len(t, notifier.to(customer), 1)
	assert.Len(t, notifier.to(provider), 1)
}

func TestSettlementService_RequestRefund_RepeatIsConflict(t *testing.T) {
	svc, store, _ := newSettlementFixture(staticSettings{})
	ctx := context.Background()
	customer := store.addUser(models.UserRoleCustomer, 0)
	jpID := uuid.New()
	tr := store.addTransaction(models.Transaction{CustomerID: customer, ProviderID: uuid.New(), JobProcessID: jpID,
		Type: models.TransactionTypeService, Amount: decimal.NewFromInt(35), Status: models.TransactionStatusCreated})

	req := RefundRequest{
		CustomerID:   customer,
		JobProcessID: jpID,
		Type:         models.TransactionTypeService,
		Details:      "brakes still squeal",
		Images:       []string{"first.jpg"},
	}
	_, err := svc.RequestRefund(ctx, req)
	require.NoError(t, err)

	req.Images = []string{"second.jpg"}
	_, err = svc.RequestRefund(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrRefundPending)
	assert.Equal(t, []string{"first.jpg"}, []string(store.transaction(tr.ID).RefundImages))
}

func TestSettlementService_RefundRejectedPaysProvider(t *testing.T) {
	svc, store, notifier := newSettlementFixture(staticSettings{})
	ctx := context.Background()
	customer := store.addUser(models.UserRoleCustomer, 0)
	provider := store.addUser(models.UserRoleMechanic, 0)
	tr := store.addTransaction(models.Transaction{CustomerID: customer, ProviderID: provider, JobProcessID: uuid.New(),
		Type: models.TransactionTypeService, Amount: decimal.NewFromInt(35), Status: models.TransactionStatusCreated,
		IsRefundRequested: true})

	decided, err := svc.DecideRefund(ctx, tr.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusReceived, decided.Status)
	assert.False(t, decided.IsRefundRequested)
	assert.True(t, decimal.NewFromInt(35).Equal(store.wallet(provider)))
	assert.True(t, store.wallet(customer).IsZero())
	assert.Len(t, notifier.to(customer), 1)
	assert.Empty(t, notifier.to(provider))
}

func TestSettlementService_DecideRefund_NotRequested(t *testing.T) {
	svc, store, _ := newSettlementFixture(staticSettings{})
	tr := store.addTransaction(models.Transaction{CustomerID: uuid.New(), ProviderID: uuid.New(), JobProcessID: uuid.New(),
		Type: models.TransactionTypeService, Amount: decimal.NewFromInt(35), Status: models.TransactionStatusCreated})

	_, err := svc.DecideRefund(context.Background(), tr.ID, true)
	assert.ErrorIs(t, err, apperror.ErrTransactionNotFound)
}

func TestSettlementService_RequestRefund_TransportIsFinal(t *testing.T) {
	svc, store, _ := newSettlementFixture(staticSettings{})
	customer := store.addUser(models.UserRoleCustomer, 0)
	jpID := uuid.New()
	store.addTransaction(models.Transaction{CustomerID: customer, ProviderID: uuid.New(), JobProcessID: jpID,
		Type: models.TransactionTypeTransport, Amount: decimal.NewFromInt(10), Status: models.TransactionStatusSuccess})

	_, err := svc.RequestRefund(context.Background(), RefundRequest{
		CustomerID:   customer,
		JobProcessID: jpID,
		Type:         models.TransactionTypeTransport,
		Details:      "late",
	})
	assert.ErrorIs(t, err, apperror.ErrTransactionNotFound)
}

func TestSettlementService_ReleaseDue(t *testing.T) {
	svc, store, notifier := newSettlementFixture(staticSettings{
		models.SettingTransactionTransferHours: decimal.NewFromInt(24),
		models.SettingCommissionRate:           decimal.NewFromInt(10),
	})
	provider := store.addUser(models.UserRoleMechanic, 0)
	old := time.Now().Add(-25 * time.Hour)

	due := store.addTransaction(models.Transaction{ProviderID: provider, JobProcessID: uuid.New(), CreatedAt: old,
		Type: models.TransactionTypeService, Amount: decimal.NewFromInt(100), Status: models.TransactionStatusCreated})
	disputed := store.addTransaction(models.Transaction{ProviderID: provider, JobProcessID: uuid.New(), CreatedAt: old,
		Type: models.TransactionTypeService, Amount: decimal.NewFromInt(50), Status: models.TransactionStatusCreated,
		IsRefundRequested: true})
	fresh := store.addTransaction(models.Transaction{ProviderID: provider, JobProcessID: uuid.New(),
		Type: models.TransactionTypeService, Amount: decimal.NewFromInt(20), Status: models.TransactionStatusCreated})

	released, err := svc.ReleaseDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	assert.Equal(t, models.TransactionStatusSuccess, store.transaction(due.ID).Status)
	assert.Equal(t, models.TransactionStatusCreated, store.transaction(disputed.ID).Status)
	assert.Equal(t, models.TransactionStatusCreated, store.transaction(fresh.ID).Status)
	assert.True(t, decimal.NewFromInt(90).Equal(store.wallet(provider)))
	assert.True(t, decimal.NewFromInt(10).Equal(store.balance(models.BalanceKeyCharge)))
	assert.Len(t, notifier.to(provider), 1)

	again, err := svc.ReleaseDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
}
