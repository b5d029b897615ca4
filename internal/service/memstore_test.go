package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/repository"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

// memStore хранилище в памяти с сериализуемыми транзакциями и откатом при ошибке.
type memStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]models.User
	jobs         map[uuid.UUID]models.Job
	processes    map[uuid.UUID]models.JobProcess
	transactions map[uuid.UUID]models.Transaction
	balances     map[string]decimal.Decimal
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[uuid.UUID]models.User{},
		jobs:         map[uuid.UUID]models.Job{},
		processes:    map[uuid.UUID]models.JobProcess{},
		transactions: map[uuid.UUID]models.Transaction{},
		balances:     map[string]decimal.Decimal{},
	}
}

type memSnapshot struct {
	users        map[uuid.UUID]models.User
	jobs         map[uuid.UUID]models.Job
	processes    map[uuid.UUID]models.JobProcess
	transactions map[uuid.UUID]models.Transaction
	balances     map[string]decimal.Decimal
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *memStore) InTx(ctx context.Context, fn func(tx repository.TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := memSnapshot{
		users:        copyMap(m.users),
		jobs:         copyMap(m.jobs),
		processes:    copyMap(m.processes),
		transactions: copyMap(m.transactions),
		balances:     copyMap(m.balances),
	}
	if err := fn(&memTx{m: m}); err != nil {
		m.users, m.jobs, m.processes, m.transactions, m.balances =
			snap.users, snap.jobs, snap.processes, snap.transactions, snap.balances
		return err
	}
	return nil
}

// helpers for seeding

func (m *memStore) addUser(role string, wallet int64) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.users[id] = models.User{ID: id, Name: gofakeit.Name(), Role: role, Wallet: decimal.NewFromInt(wallet)}
	return id
}

func (m *memStore) setUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *memStore) addJob(customerID uuid.UUID, platform string, targets ...uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	ids := pq.StringArray{}
	for _, t := range targets {
		ids = append(ids, t.String())
	}
	m.jobs[id] = models.Job{ID: id, CustomerID: customerID, Targets: ids, Status: models.JobStatusActive, Platform: platform}
	return id
}

func (m *memStore) setJob(j models.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
}

func (m *memStore) addProcess(customerID, providerID uuid.UUID, status valueobject.JobProcessStatus, servicePrice int64) models.JobProcess {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobID := uuid.New()
	m.jobs[jobID] = models.Job{ID: jobID, CustomerID: customerID, Status: models.JobStatusActive, Platform: models.PlatformOnSite}
	jp := models.JobProcess{
		ID:           uuid.New(),
		JobID:        jobID,
		ProviderID:   providerID,
		CustomerID:   customerID,
		Services:     models.JobServices{},
		ServicePrice: decimal.NewFromInt(servicePrice),
		Status:       status,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.processes[jp.ID] = jp
	return jp
}

func (m *memStore) process(id uuid.UUID) models.JobProcess {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processes[id]
}

func (m *memStore) job(id uuid.UUID) models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

func (m *memStore) wallet(id uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].Wallet
}

func (m *memStore) balance(key string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[key]
}

func (m *memStore) addTransaction(t models.Transaction) models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = t.CreatedAt
	m.transactions[t.ID] = t
	return t
}

func (m *memStore) transactionsOf(jobProcessID uuid.UUID) []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Transaction{}
	for _, t := range m.transactions {
		if t.JobProcessID == jobProcessID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type > out[j].Type })
	return out
}

func (m *memStore) transaction(id uuid.UUID) models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactions[id]
}

// memTx работает под блокировкой memStore.
type memTx struct {
	m *memStore
}

func (t *memTx) JobProcessExists(_ context.Context, jobID, providerID uuid.UUID) (bool, error) {
	for _, jp := range t.m.processes {
		if jp.JobID == jobID && jp.ProviderID == providerID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) PullJobTarget(_ context.Context, jobID, providerID uuid.UUID) (*models.Job, error) {
	job, ok := t.m.jobs[jobID]
	if !ok || job.Status != models.JobStatusActive || job.IsDeleted {
		return nil, common.ErrNotFound
	}
	remaining := pq.StringArray{}
	found := false
	for _, target := range job.Targets {
		if target == providerID.String() {
			found = true
			continue
		}
		remaining = append(remaining, target)
	}
	if !found {
		return nil, common.ErrNotFound
	}
	job.Targets = remaining
	t.m.jobs[jobID] = job
	return &job, nil
}

func (t *memTx) InsertJobProcess(_ context.Context, jp *models.JobProcess) error {
	for _, existing := range t.m.processes {
		if existing.JobID == jp.JobID && existing.ProviderID == jp.ProviderID && existing.Status.IsRunning() {
			return common.ErrAlreadyExists
		}
	}
	jp.ID = uuid.New()
	jp.CreatedAt = time.Now()
	jp.UpdatedAt = jp.CreatedAt
	t.m.processes[jp.ID] = *jp
	return nil
}

func (t *memTx) LockJobProcess(_ context.Context, id uuid.UUID, ownerColumn string, ownerID uuid.UUID, statuses []string) (*models.JobProcess, error) {
	jp, ok := t.m.processes[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	switch ownerColumn {
	case "customer_id":
		if jp.CustomerID != ownerID {
			return nil, common.ErrNotFound
		}
	case "provider_id":
		if jp.ProviderID != ownerID {
			return nil, common.ErrNotFound
		}
	default:
		return nil, common.ErrInvalidInput
	}
	for _, s := range statuses {
		if string(jp.Status) == s {
			return &jp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (t *memTx) UpdateJobProcess(_ context.Context, jp *models.JobProcess) error {
	if _, ok := t.m.processes[jp.ID]; !ok {
		return common.ErrNotFound
	}
	jp.UpdatedAt = time.Now()
	t.m.processes[jp.ID] = *jp
	return nil
}

func (t *memTx) UpdateJobStatus(_ context.Context, jobID uuid.UUID, status string) error {
	job, ok := t.m.jobs[jobID]
	if !ok {
		return common.ErrNotFound
	}
	job.Status = status
	t.m.jobs[jobID] = job
	return nil
}

func (t *memTx) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := t.m.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr *models.Transaction) error {
	tr.ID = uuid.New()
	tr.CreatedAt = time.Now()
	tr.UpdatedAt = tr.CreatedAt
	tr.RefundImages = pq.StringArray{}
	t.m.transactions[tr.ID] = *tr
	return nil
}

func (t *memTx) DebitWallet(_ context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	u, ok := t.m.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	if u.Wallet.LessThan(amount) {
		return repository.ErrInsufficientFunds
	}
	u.Wallet = u.Wallet.Sub(amount)
	t.m.users[userID] = u
	return nil
}

func (t *memTx) CreditWallet(_ context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	u, ok := t.m.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.Wallet = u.Wallet.Add(amount)
	t.m.users[userID] = u
	return nil
}

func (t *memTx) IncrementBalance(_ context.Context, key string, delta decimal.Decimal) (decimal.Decimal, error) {
	t.m.balances[key] = t.m.balances[key].Add(delta)
	return t.m.balances[key], nil
}

func (t *memTx) FinalizeTransactions(_ context.Context, jobProcessID uuid.UUID) ([]models.Transaction, error) {
	var out []models.Transaction
	for id, tr := range t.m.transactions {
		if tr.JobProcessID == jobProcessID && tr.Status == models.TransactionStatusCreated {
			tr.Status = models.TransactionStatusSuccess
			tr.IsRefundRequested = false
			t.m.transactions[id] = tr
			out = append(out, tr)
		}
	}
	return out, nil
}

func (t *memTx) LockRefundCandidate(_ context.Context, jobProcessID uuid.UUID, txType string, customerID uuid.UUID) (*models.Transaction, error) {
	for _, tr := range t.m.transactions {
		if tr.JobProcessID == jobProcessID && tr.Type == txType && tr.CustomerID == customerID &&
			tr.Status == models.TransactionStatusCreated {
			return &tr, nil
		}
	}
	return nil, common.ErrNotFound
}

func (t *memTx) LockRequestedRefund(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	tr, ok := t.m.transactions[id]
	if !ok || !tr.IsRefundRequested || tr.Status != models.TransactionStatusCreated {
		return nil, common.ErrNotFound
	}
	return &tr, nil
}

func (t *memTx) LockDueTransactions(_ context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	var due []models.Transaction
	for _, tr := range t.m.transactions {
		if tr.Status == models.TransactionStatusCreated && !tr.IsRefundRequested && !tr.CreatedAt.After(createdBefore) {
			due = append(due, tr)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (t *memTx) UpdateTransaction(_ context.Context, tr *models.Transaction) error {
	if _, ok := t.m.transactions[tr.ID]; !ok {
		return common.ErrNotFound
	}
	tr.UpdatedAt = time.Now()
	t.m.transactions[tr.ID] = *tr
	return nil
}

// recordingNotifier запоминает уведомления синхронно.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, receiverID uuid.UUID, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, models.Notification{UserID: receiverID, Title: title, Message: message})
}

func (n *recordingNotifier) to(userID uuid.UUID) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, item := range n.sent {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out
}

// staticSettings числовые настройки из карты.
type staticSettings map[string]decimal.Decimal

func (s staticSettings) Decimal(_ context.Context, key string, fallback decimal.Decimal) decimal.Decimal {
	if v, ok := s[key]; ok {
		return v
	}
	return fallback
}
