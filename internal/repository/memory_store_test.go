package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touripk/support-desk/internal/domain"
)

var base = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func seedTicket(t *testing.T, repos Repositories, ref, customer, company string, createdAt time.Time) *domain.Ticket {
	t.Helper()
	ticket := domain.NewTicket(customer, company, "subject "+ref, "description", domain.IssueTypeOther, domain.TicketPriorityLow, createdAt)
	ticket.Reference = ref
	require.NoError(t, repos.Tickets.Create(context.Background(), ticket))
	return ticket
}

func TestMemoryStoreRollsBackFailedTransaction(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		seedTicket(t, repos, "TKT-ROLLBACK", "c1", "co1", base)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Repositories().Tickets.GetByReference(ctx, "TKT-ROLLBACK")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		seedTicket(t, repos, "TKT-COMMIT", "c1", "co1", base)
		return nil
	}))
	got, err := store.Repositories().Tickets.GetByReference(ctx, "TKT-COMMIT")
	require.NoError(t, err)
	assert.Equal(t, base.Add(domain.EscalationWindow), got.EscalationDeadline)
}

func TestMemoryTicketsListScopesAndOrders(t *testing.T) {
	store := NewMemoryStore()
	repos := store.Repositories()
	ctx := context.Background()

	seedTicket(t, repos, "TKT-B", "c1", "co1", base.Add(time.Hour))
	seedTicket(t, repos, "TKT-A", "c1", "co2", base)
	seedTicket(t, repos, "TKT-C", "c2", "co1", base.Add(2*time.Hour))

	customer := "c1"
	mine, err := repos.Tickets.List(ctx, TicketFilter{CustomerID: &customer})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "TKT-A", mine[0].Reference, "oldest first")
	assert.Equal(t, "TKT-B", mine[1].Reference)

	company, err := repos.Tickets.List(ctx, TicketFilter{CompanyIDs: []string{"co1"}})
	require.NoError(t, err)
	assert.Len(t, company, 2)

	none, err := repos.Tickets.List(ctx, TicketFilter{CompanyIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	page, err := repos.Tickets.List(ctx, TicketFilter{Limit: 1, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "TKT-C", page[0].Reference)
}

func TestMemoryTicketsListOverdue(t *testing.T) {
	store := NewMemoryStore()
	repos := store.Repositories()
	ctx := context.Background()

	overdue := seedTicket(t, repos, "TKT-OLD", "c1", "co1", base)
	seedTicket(t, repos, "TKT-NEW", "c1", "co1", base.Add(40*time.Hour))
	replied := seedTicket(t, repos, "TKT-REPLIED", "c1", "co1", base)
	replied.RecordReply(domain.SenderTypeCompany, base.Add(time.Hour))
	require.NoError(t, repos.Tickets.Update(ctx, replied))

	got, err := repos.Tickets.ListOverdueForUpdate(ctx, TicketFilter{}, base.Add(49*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)

	other := "c9"
	got, err = repos.Tickets.ListOverdueForUpdate(ctx, TicketFilter{CustomerID: &other}, base.Add(49*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryMessagesKeepConversationOrder(t *testing.T) {
	store := NewMemoryStore()
	repos := store.Repositories()
	ctx := context.Background()

	bodies := []string{"first", "second", "third"}
	for _, body := range bodies {
		require.NoError(t, repos.Messages.Create(ctx, &domain.TicketMessage{
			TicketID:   "t1",
			SenderID:   "u1",
			SenderType: domain.SenderTypeCustomer,
			Body:       body,
			CreatedAt:  base,
		}))
	}

	msgs, err := repos.Messages.ListByTicket(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, body := range bodies {
		assert.Equal(t, body, msgs[i].Body)
	}
}

func TestMemoryReferences(t *testing.T) {
	store := NewMemoryStore()
	store.AddOrder("o1", "u1")
	store.AddPackage("p1")
	refs := store.Repositories().References
	ctx := context.Background()

	ok, err := refs.OrderBelongsTo(ctx, "o1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = refs.OrderBelongsTo(ctx, "o1", "u2")
	assert.False(t, ok)
	ok, _ = refs.PackageExists(ctx, "p1")
	assert.True(t, ok)
	ok, _ = refs.PackageExists(ctx, "p2")
	assert.False(t, ok)
}
