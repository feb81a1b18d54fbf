package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdnsystems/OmniCare-sub005/internal/email"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	clinics  map[uuid.UUID]*repo.Clinic
	invoices map[uuid.UUID][]repo.Invoice
	admins   map[uuid.UUID][]string
	audits   []*repo.AuditEvent
	failFor  uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		clinics:  map[uuid.UUID]*repo.Clinic{},
		invoices: map[uuid.UUID][]repo.Invoice{},
		admins:   map[uuid.UUID][]string{},
	}
}

func (m *memStore) addClinic(level Level, invoices ...repo.Invoice) uuid.UUID {
	id := uuid.New()
	m.clinics[id] = &repo.Clinic{Model: repo.Model{ID: id}, Name: "Clínica " + id.String()[:4], Active: true, BlockLevel: string(level)}
	for i := range invoices {
		invoices[i].ID = uuid.New()
		invoices[i].ClinicID = id
	}
	m.invoices[id] = invoices
	return id
}

func (m *memStore) ActiveClinics(context.Context) ([]repo.Clinic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repo.Clinic
	for _, c := range m.clinics {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) ClinicByID(_ context.Context, id uuid.UUID) (*repo.Clinic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clinics[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) OpenInvoices(_ context.Context, clinicID uuid.UUID) ([]repo.Invoice, error) {
	if clinicID == m.failFor {
		return nil, errors.New("boom")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repo.Invoice
	for _, inv := range m.invoices[clinicID] {
		if inv.Status == repo.InvoicePending || inv.Status == repo.InvoiceOverdue {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memStore) MarkOverdue(_ context.Context, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for cid, list := range m.invoices {
		for i := range list {
			if want[list[i].ID] && list[i].Status == repo.InvoicePending {
				list[i].Status = repo.InvoiceOverdue
				n++
			}
		}
		m.invoices[cid] = list
	}
	return n, nil
}

func (m *memStore) SetLevel(_ context.Context, clinicID uuid.UUID, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clinics[clinicID].BlockLevel = string(level)
	return nil
}

func (m *memStore) ClinicAdminEmails(_ context.Context, clinicID uuid.UUID) ([]string, error) {
	return m.admins[clinicID], nil
}

func (m *memStore) Audit(_ context.Context, ev *repo.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, ev)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string]email.BillingNotice
}

func (f *fakeNotifier) SendBillingNotice(to string, n email.BillingNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string]email.BillingNotice{}
	}
	f.sent[to] = n
	return nil
}

func newSweeper(store Store, n Notifier, now time.Time) *Sweeper {
	return &Sweeper{
		Store:       store,
		Notifier:    n,
		Thresholds:  DefaultThresholds(),
		Location:    time.UTC,
		Concurrency: 2,
		Log:         zerolog.Nop(),
		Now:         func() time.Time { return now },
	}
}

func TestSweeperRun(t *testing.T) {
	now := date(2026, 8, 31)
	store := newMemStore()
	ok := store.addClinic(LevelNone,
		repo.Invoice{Status: repo.InvoicePending, DueDate: date(2026, 9, 10), AmountCents: 100})
	notify := store.addClinic(LevelNone,
		repo.Invoice{Status: repo.InvoicePending, DueDate: date(2026, 8, 25), AmountCents: 100})
	blocked := store.addClinic(LevelRestriction,
		repo.Invoice{Status: repo.InvoiceOverdue, DueDate: date(2026, 7, 1), AmountCents: 300},
		repo.Invoice{Status: repo.InvoicePending, DueDate: date(2026, 8, 1), AmountCents: 200})
	recovered := store.addClinic(LevelBlocked,
		repo.Invoice{Status: repo.InvoicePaid, DueDate: date(2026, 6, 1), AmountCents: 100})
	store.admins[blocked] = []string{"admin@blocked", "admin@blocked"}

	n := &fakeNotifier{}
	s := newSweeper(store, n, now)
	var invalidated sync.Map
	s.OnLevelChange = func(id uuid.UUID) { invalidated.Store(id, true) }

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Clinics)
	assert.Equal(t, int64(2), res.MarkedOverdue)
	assert.Equal(t, 3, res.Changed)
	assert.Zero(t, res.Failed)

	assert.Equal(t, "NONE", store.clinics[ok].BlockLevel)
	assert.Equal(t, "NOTIFICATION", store.clinics[notify].BlockLevel)
	assert.Equal(t, "BLOCKED", store.clinics[blocked].BlockLevel)
	assert.Equal(t, "NONE", store.clinics[recovered].BlockLevel)

	_, inv := invalidated.Load(recovered)
	assert.True(t, inv)
	assert.Len(t, store.audits, 3)

	require.Len(t, n.sent, 1, "duplicate admin addresses get one notice; de-escalation sends none")
	notice := n.sent["admin@blocked"]
	assert.Equal(t, "BLOCKED", notice.Level)
	assert.Equal(t, 61, notice.DaysOverdue)
	assert.Equal(t, int64(500), notice.OpenCents)

	res, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Changed, "second pass is idempotent")
	assert.Zero(t, res.MarkedOverdue)
}

func TestSweeperSkipsNoticeUnderOverride(t *testing.T) {
	store := newMemStore()
	id := store.addClinic(LevelNone,
		repo.Invoice{Status: repo.InvoicePending, DueDate: date(2026, 1, 1), AmountCents: 100})
	pinned := string(LevelNone)
	store.clinics[id].BlockLevelOverride = &pinned
	store.admins[id] = []string{"admin@pinned"}

	n := &fakeNotifier{}
	res, err := newSweeper(store, n, date(2026, 3, 1)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, "BLOCKED", store.clinics[id].BlockLevel, "computed level is still persisted")
	assert.Len(t, store.audits, 1)
	assert.Empty(t, n.sent)
}

func TestSweeperIsolatesFailures(t *testing.T) {
	store := newMemStore()
	bad := store.addClinic(LevelNone)
	good := store.addClinic(LevelNone,
		repo.Invoice{Status: repo.InvoicePending, DueDate: date(2026, 1, 1), AmountCents: 100})
	store.failFor = bad

	res, err := newSweeper(store, nil, date(2026, 1, 20)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "RESTRICTION", store.clinics[good].BlockLevel)
}

func TestSweeperRecompute(t *testing.T) {
	store := newMemStore()
	id := store.addClinic(LevelBlocked,
		repo.Invoice{Status: repo.InvoicePaid, DueDate: date(2026, 1, 1), AmountCents: 100})
	level, err := newSweeper(store, nil, date(2026, 3, 1)).Recompute(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)

	_, err = newSweeper(store, nil, date(2026, 3, 1)).Recompute(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestSweeperLoopStopsOnCancel(t *testing.T) {
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newSweeper(store, nil, date(2026, 1, 1)).Loop(ctx, time.Hour) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not return after cancel")
	}
}
