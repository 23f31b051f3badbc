package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrInvalidStatus  = errors.New("invalid order status")
)

const defaultListLimit = 50

// Service manages orders and their support tickets for an operation.
type Service struct {
	db *sql.DB
}

// NewService creates an order service backed by the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateOrder creates an order within an operation.
func (s *Service) CreateOrder(ctx context.Context, order *Order) error {
	if order.Status == "" {
		order.Status = OrderStatusPending
	}
	if !order.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, order.Status)
	}
	if order.Currency == "" {
		order.Currency = "USD"
	}

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	query := `
		INSERT INTO orders (operation_id, reference, customer_name, customer_email, status, total_cents, currency, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, order.OperationID, order.Reference,
		order.CustomerName, order.CustomerEmail, order.Status, order.TotalCents,
		order.Currency, order.Notes, order.CreatedBy, order.CreatedAt, order.UpdatedAt).
		Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by ID within an operation.
func (s *Service) GetOrder(ctx context.Context, operationID, id int64) (*Order, error) {
	query := `
		SELECT id, operation_id, reference, customer_name, customer_email, status, total_cents, currency, notes, created_by, created_at, updated_at
		FROM orders
		WHERE id = $1 AND operation_id = $2
	`
	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id, operationID))
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// ListOrders lists orders for an operation, newest first.
func (s *Service) ListOrders(ctx context.Context, operationID int64, filter ListOrdersFilter) ([]*Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	args := []interface{}{operationID}
	where := "operation_id = $1"
	argPos := 2
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT id, operation_id, reference, customer_name, customer_email, status, total_cents, currency, notes, created_by, created_at, updated_at
		FROM orders
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, argPos, argPos+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateOrder applies a partial update to an order.
func (s *Service) UpdateOrder(ctx context.Context, operationID, id int64, updates *UpdateOrderRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.CustomerName != nil {
		setClauses = append(setClauses, fmt.Sprintf("customer_name = $%d", argPos))
		args = append(args, *updates.CustomerName)
		argPos++
	}
	if updates.CustomerEmail != nil {
		setClauses = append(setClauses, fmt.Sprintf("customer_email = $%d", argPos))
		args = append(args, *updates.CustomerEmail)
		argPos++
	}
	if updates.Status != nil {
		if !updates.Status.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, *updates.Status)
		}
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *updates.Status)
		argPos++
	}
	if updates.TotalCents != nil {
		setClauses = append(setClauses, fmt.Sprintf("total_cents = $%d", argPos))
		args = append(args, *updates.TotalCents)
		argPos++
	}
	if updates.Notes != nil {
		setClauses = append(setClauses, fmt.Sprintf("notes = $%d", argPos))
		args = append(args, *updates.Notes)
		argPos++
	}
	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id, operationID)
	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d AND operation_id = $%d",
		strings.Join(setClauses, ", "), argPos, argPos+1)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// DeleteOrder deletes an order and its tickets.
func (s *Service) DeleteOrder(ctx context.Context, operationID, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM order_tickets WHERE order_id = $1 AND operation_id = $2`, id, operationID); err != nil {
		return fmt.Errorf("failed to delete order tickets: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM orders WHERE id = $1 AND operation_id = $2`, id, operationID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// CreateTicket opens a support ticket against an order.
func (s *Service) CreateTicket(ctx context.Context, ticket *Ticket) error {
	if _, err := s.GetOrder(ctx, ticket.OperationID, ticket.OrderID); err != nil {
		return err
	}
	if ticket.Status == "" {
		ticket.Status = TicketStatusOpen
	}

	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	query := `
		INSERT INTO order_tickets (order_id, operation_id, subject, body, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, ticket.OrderID, ticket.OperationID,
		ticket.Subject, ticket.Body, ticket.Status, ticket.CreatedBy, ticket.CreatedAt, ticket.UpdatedAt).
		Scan(&ticket.ID)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// ListTickets lists tickets for an order, newest first.
func (s *Service) ListTickets(ctx context.Context, operationID, orderID int64) ([]*Ticket, error) {
	query := `
		SELECT id, order_id, operation_id, subject, body, status, created_by, created_at, updated_at
		FROM order_tickets
		WHERE order_id = $1 AND operation_id = $2
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, orderID, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

// CloseTicket marks a ticket closed.
func (s *Service) CloseTicket(ctx context.Context, operationID, id int64) error {
	query := `UPDATE order_tickets SET status = $1, updated_at = $2 WHERE id = $3 AND operation_id = $4`
	result, err := s.db.ExecContext(ctx, query, TicketStatusClosed, time.Now().UTC(), id, operationID)
	if err != nil {
		return fmt.Errorf("failed to close ticket: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTicketNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*Order, error) {
	order := &Order{}
	var customerEmail, notes sql.NullString
	var createdBy sql.NullInt64
	err := row.Scan(
		&order.ID, &order.OperationID, &order.Reference, &order.CustomerName,
		&customerEmail, &order.Status, &order.TotalCents, &order.Currency,
		&notes, &createdBy, &order.CreatedAt, &order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if customerEmail.Valid {
		order.CustomerEmail = customerEmail.String
	}
	if notes.Valid {
		order.Notes = notes.String
	}
	if createdBy.Valid {
		order.CreatedBy = &createdBy.Int64
	}
	return order, nil
}

func scanTicket(row rowScanner) (*Ticket, error) {
	ticket := &Ticket{}
	var body sql.NullString
	var createdBy sql.NullInt64
	err := row.Scan(
		&ticket.ID, &ticket.OrderID, &ticket.OperationID, &ticket.Subject,
		&body, &ticket.Status, &createdBy, &ticket.CreatedAt, &ticket.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}
	if body.Valid {
		ticket.Body = body.String
	}
	if createdBy.Valid {
		ticket.CreatedBy = &createdBy.Int64
	}
	return ticket, nil
}
