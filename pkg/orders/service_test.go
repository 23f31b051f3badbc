package orders

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestService(t *testing.T) *Service {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation_id INTEGER NOT NULL,
			reference TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_email TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			total_cents INTEGER NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'USD',
			notes TEXT,
			created_by INTEGER,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(operation_id, reference)
		);

		CREATE TABLE order_tickets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL,
			operation_id INTEGER NOT NULL,
			subject TEXT NOT NULL,
			body TEXT,
			status TEXT NOT NULL DEFAULT 'open',
			created_by INTEGER,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return NewService(db)
}

func createOrder(t *testing.T, svc *Service, operationID int64, reference string, status OrderStatus) *Order {
	order := &Order{
		OperationID:  operationID,
		Reference:    reference,
		CustomerName: "Test Customer",
		Status:       status,
		TotalCents:   12500,
	}
	require.NoError(t, svc.CreateOrder(context.Background(), order))
	return order
}

func TestCreateAndGetOrder(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	createdBy := int64(7)
	order := &Order{
		OperationID:   1,
		Reference:     "ORD-1001",
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		TotalCents:    49900,
		CreatedBy:     &createdBy,
	}
	require.NoError(t, svc.CreateOrder(ctx, order))
	assert.NotZero(t, order.ID)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, "USD", order.Currency)

	got, err := svc.GetOrder(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1001", got.Reference)
	assert.Equal(t, "ada@example.com", got.CustomerEmail)
	assert.Equal(t, int64(49900), got.TotalCents)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, int64(7), *got.CreatedBy)
}

func TestGetOrderScopedToOperation(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, 1, "ORD-1", OrderStatusPending)

	_, err := svc.GetOrder(ctx, 2, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCreateOrderRejectsInvalidStatus(t *testing.T) {
	svc := setupTestService(t)

	order := &Order{OperationID: 1, Reference: "ORD-X", CustomerName: "x", Status: "archived"}
	assert.ErrorIs(t, svc.CreateOrder(context.Background(), order), ErrInvalidStatus)
}

func TestListOrders(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	createOrder(t, svc, 1, "ORD-1", OrderStatusPending)
	createOrder(t, svc, 1, "ORD-2", OrderStatusPaid)
	createOrder(t, svc, 1, "ORD-3", OrderStatusPaid)
	createOrder(t, svc, 2, "ORD-1", OrderStatusPending)

	all, err := svc.ListOrders(ctx, 1, ListOrdersFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	paid, err := svc.ListOrders(ctx, 1, ListOrdersFilter{Status: OrderStatusPaid})
	require.NoError(t, err)
	assert.Len(t, paid, 2)

	limited, err := svc.ListOrders(ctx, 1, ListOrdersFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestUpdateOrder(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, 1, "ORD-1", OrderStatusPending)

	shipped := OrderStatusShipped
	newTotal := int64(9900)
	require.NoError(t, svc.UpdateOrder(ctx, 1, order.ID, &UpdateOrderRequest{
		Status:     &shipped,
		TotalCents: &newTotal,
	}))

	got, err := svc.GetOrder(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, got.Status)
	assert.Equal(t, int64(9900), got.TotalCents)

	bad := OrderStatus("lost")
	assert.ErrorIs(t, svc.UpdateOrder(ctx, 1, order.ID, &UpdateOrderRequest{Status: &bad}), ErrInvalidStatus)

	assert.ErrorIs(t, svc.UpdateOrder(ctx, 1, 9999, &UpdateOrderRequest{Status: &shipped}), ErrOrderNotFound)
}

func TestDeleteOrderRemovesTickets(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, 1, "ORD-1", OrderStatusPending)
	ticket := &Ticket{OrderID: order.ID, OperationID: 1, Subject: "Where is my order"}
	require.NoError(t, svc.CreateTicket(ctx, ticket))

	require.NoError(t, svc.DeleteOrder(ctx, 1, order.ID))

	_, err := svc.GetOrder(ctx, 1, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	tickets, err := svc.ListTickets(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Empty(t, tickets)

	assert.ErrorIs(t, svc.DeleteOrder(ctx, 1, order.ID), ErrOrderNotFound)
}

func TestTicketLifecycle(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, 1, "ORD-1", OrderStatusPaid)

	ticket := &Ticket{OrderID: order.ID, OperationID: 1, Subject: "Damaged on arrival", Body: "box crushed"}
	require.NoError(t, svc.CreateTicket(ctx, ticket))
	assert.NotZero(t, ticket.ID)
	assert.Equal(t, TicketStatusOpen, ticket.Status)

	tickets, err := svc.ListTickets(ctx, 1, order.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Damaged on arrival", tickets[0].Subject)

	require.NoError(t, svc.CloseTicket(ctx, 1, ticket.ID))

	tickets, err = svc.ListTickets(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, TicketStatusClosed, tickets[0].Status)

	assert.ErrorIs(t, svc.CloseTicket(ctx, 1, 9999), ErrTicketNotFound)
}

func TestCreateTicketRequiresOrder(t *testing.T) {
	svc := setupTestService(t)

	ticket := &Ticket{OrderID: 9999, OperationID: 1, Subject: "orphan"}
	assert.ErrorIs(t, svc.CreateTicket(context.Background(), ticket), ErrOrderNotFound)
}
