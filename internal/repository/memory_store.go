package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/touripk/support-desk/internal/domain"
)

// MemoryStore keeps every repository in process memory. It backs local runs without
// POSTGRES_DSN and the package tests. Transactions are serialized and roll back on error.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data memoryData
}

type memoryData struct {
	tickets     map[string]domain.Ticket
	ticketOrder map[string]int
	messages    map[string][]domain.TicketMessage
	history     map[string][]domain.TicketHistory
	companies   map[string]domain.Company
	users       map[string]domain.User
	orders      map[string]string
	packages    map[string]struct{}
	seq         int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: memoryData{
		tickets:     map[string]domain.Ticket{},
		ticketOrder: map[string]int{},
		messages:    map[string][]domain.TicketMessage{},
		history:     map[string][]domain.TicketHistory{},
		companies:   map[string]domain.Company{},
		users:       map[string]domain.User{},
		orders:      map[string]string{},
		packages:    map[string]struct{}{},
	}}
}

func (d memoryData) clone() memoryData {
	out := memoryData{
		tickets:     make(map[string]domain.Ticket, len(d.tickets)),
		ticketOrder: make(map[string]int, len(d.ticketOrder)),
		messages:    make(map[string][]domain.TicketMessage, len(d.messages)),
		history:     make(map[string][]domain.TicketHistory, len(d.history)),
		companies:   make(map[string]domain.Company, len(d.companies)),
		users:       make(map[string]domain.User, len(d.users)),
		orders:      make(map[string]string, len(d.orders)),
		packages:    make(map[string]struct{}, len(d.packages)),
		seq:         d.seq,
	}
	for k, v := range d.tickets {
		out.tickets[k] = v
	}
	for k, v := range d.ticketOrder {
		out.ticketOrder[k] = v
	}
	for k, v := range d.messages {
		out.messages[k] = append([]domain.TicketMessage(nil), v...)
	}
	for k, v := range d.history {
		out.history[k] = append([]domain.TicketHistory(nil), v...)
	}
	for k, v := range d.companies {
		out.companies[k] = v
	}
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.orders {
		out.orders[k] = v
	}
	for k := range d.packages {
		out.packages[k] = struct{}{}
	}
	return out
}

// Repositories exposes the store through the repository interfaces.
func (m *MemoryStore) Repositories() Repositories {
	return Repositories{
		Tickets:    &memTickets{m},
		Messages:   &memMessages{m},
		History:    &memHistory{m},
		Companies:  &memCompanies{m},
		Users:      &memUsers{m},
		References: &memReferences{m},
	}
}

// WithinTx runs fn with exclusive access and restores the previous state when fn fails.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.data.clone()
	m.mu.RUnlock()

	if err := fn(ctx, m.Repositories()); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// AddUser seeds an account and returns it with its ID set.
func (m *MemoryStore) AddUser(user domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	m.data.users[user.ID] = user
	return user
}

// AddCompany seeds a company and returns it with its ID set.
func (m *MemoryStore) AddCompany(company domain.Company) domain.Company {
	m.mu.Lock()
	defer m.mu.Unlock()
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	m.data.companies[company.ID] = company
	return company
}

// AddOrder seeds an order placed by userID.
func (m *MemoryStore) AddOrder(orderID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.orders[orderID] = userID
}

// AddPackage seeds a tour package.
func (m *MemoryStore) AddPackage(packageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.packages[packageID] = struct{}{}
}

type memTickets struct{ m *MemoryStore }

func (r *memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ticket.ID = uuid.NewString()
	r.m.data.seq++
	r.m.data.tickets[ticket.ID] = *ticket
	r.m.data.ticketOrder[ticket.ID] = r.m.data.seq
	return nil
}

func (r *memTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.data.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Status = ticket.Status
	stored.UpdatedAt = ticket.UpdatedAt
	stored.FirstResponseAt = ticket.FirstResponseAt
	stored.ResolvedAt = ticket.ResolvedAt
	stored.EscalatedAt = ticket.EscalatedAt
	stored.EscalatedToAdmin = ticket.EscalatedToAdmin
	r.m.data.tickets[ticket.ID] = stored
	return nil
}

func (r *memTickets) GetByReference(_ context.Context, reference string) (*domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, ticket := range r.m.data.tickets {
		if ticket.Reference == reference {
			t := ticket
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTickets) GetByReferenceForUpdate(ctx context.Context, reference string) (*domain.Ticket, error) {
	return r.GetByReference(ctx, reference)
}

func (r *memTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	statuses := make(map[domain.TicketStatus]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = true
	}
	var result []domain.Ticket
	for _, ticket := range r.m.data.tickets {
		if !inScope(filter, ticket) {
			continue
		}
		if len(statuses) > 0 && !statuses[ticket.Status] {
			continue
		}
		if filter.EscalatedOnly && ticket.Status != domain.TicketStatusEscalated && !ticket.EscalatedToAdmin {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return r.m.data.ticketOrder[result[i].ID] < r.m.data.ticketOrder[result[j].ID]
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r *memTickets) ListOverdueForUpdate(_ context.Context, filter TicketFilter, now time.Time) ([]domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.m.data.tickets {
		if !inScope(filter, ticket) {
			continue
		}
		if ticket.Status != domain.TicketStatusPendingCompany || !ticket.EscalationDeadline.Before(now) {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EscalationDeadline.Before(result[j].EscalationDeadline)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func inScope(filter TicketFilter, ticket domain.Ticket) bool {
	if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.CompanyIDs != nil {
		for _, id := range filter.CompanyIDs {
			if id == ticket.CompanyID {
				return true
			}
		}
		return false
	}
	return true
}

type memMessages struct{ m *MemoryStore }

func (r *memMessages) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	msg.ID = uuid.NewString()
	r.m.data.messages[msg.TicketID] = append(r.m.data.messages[msg.TicketID], *msg)
	return nil
}

func (r *memMessages) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	msgs := append([]domain.TicketMessage(nil), r.m.data.messages[ticketID]...)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

type memHistory struct{ m *MemoryStore }

func (r *memHistory) Create(_ context.Context, history *domain.TicketHistory) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	history.ID = uuid.NewString()
	r.m.data.history[history.TicketID] = append(r.m.data.history[history.TicketID], *history)
	return nil
}

func (r *memHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return append([]domain.TicketHistory(nil), r.m.data.history[ticketID]...), nil
}

type memCompanies struct{ m *MemoryStore }

func (r *memCompanies) GetByID(_ context.Context, id string) (*domain.Company, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	company, ok := r.m.data.companies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &company, nil
}

func (r *memCompanies) ListByOwner(_ context.Context, ownerID string) ([]domain.Company, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var result []domain.Company
	for _, company := range r.m.data.companies {
		if company.OwnerID != nil && *company.OwnerID == ownerID {
			result = append(result, company)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type memUsers struct{ m *MemoryStore }

func (r *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	user, ok := r.m.data.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, user := range r.m.data.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memReferences struct{ m *MemoryStore }

func (r *memReferences) OrderBelongsTo(_ context.Context, orderID, userID string) (bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	owner, ok := r.m.data.orders[orderID]
	return ok && owner == userID, nil
}

func (r *memReferences) PackageExists(_ context.Context, packageID string) (bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	_, ok := r.m.data.packages[packageID]
	return ok, nil
}
