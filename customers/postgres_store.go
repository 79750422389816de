package customers

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures
const uniqueViolation = "23505"

var customerColumns = []string{
	"id", "name", "email", "phone", "total_spend", "visits",
	"last_visit", "age", "segment", "city", "created_at", "updated_at",
}

var orderColumns = []string{
	"id", "customer_id", "customer_name", "amount", "status", "ordered_at", "items",
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// likePattern wraps query for a substring ILIKE, escaping LIKE metacharacters
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(c *Customer) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query, args, err := builder().
		Insert("customers").
		Columns(customerColumns...).
		Values(c.ID, c.Name, c.Email, c.Phone, c.TotalSpend, c.Visits,
			nullTime(c.LastVisit), c.Age, c.Segment, c.City, c.CreatedAt, c.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("customer %s: %w", c.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(id string) (*Customer, error) {
	query, args, err := builder().
		Select(customerColumns...).
		From("customers").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	c, err := scanCustomer(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) List(search string) ([]*Customer, error) {
	q := builder().
		Select(customerColumns...).
		From("customers").
		OrderBy("created_at DESC", "id DESC")

	if search != "" {
		p := likePattern(search)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": p},
			squirrel.ILike{"email": p},
			squirrel.ILike{"city": p},
		})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	list := []*Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) Update(c *Customer) error {
	c.UpdatedAt = time.Now()

	query, args, err := builder().
		Update("customers").
		SetMap(map[string]any{
			"name":        c.Name,
			"email":       c.Email,
			"phone":       c.Phone,
			"total_spend": c.TotalSpend,
			"visits":      c.Visits,
			"last_visit":  nullTime(c.LastVisit),
			"age":         c.Age,
			"segment":     c.Segment,
			"city":        c.City,
			"updated_at":  c.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": c.ID}).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	err = s.db.QueryRow(query, args...).Scan(&c.CreatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("customer %s: %w", c.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(id string) error {
	query, args, err := builder().
		Delete("customers").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*Customer, error) {
	var c Customer
	var lastVisit sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.TotalSpend, &c.Visits,
		&lastVisit, &c.Age, &c.Segment, &c.City, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if lastVisit.Valid {
		c.LastVisit = lastVisit.Time
	}
	return &c, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// PostgresOrderStore implements OrderStore backed by PostgreSQL
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

func (s *PostgresOrderStore) Add(o *Order) error {
	// pq encodes a nil slice as NULL
	if o.Items == nil {
		o.Items = []string{}
	}

	query, args, err := builder().
		Insert("orders").
		Columns(orderColumns...).
		Values(o.ID, o.CustomerID, o.CustomerName, o.Amount, string(o.Status), o.Date, pq.Array(o.Items)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order %s: %w", o.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *PostgresOrderStore) Get(id string) (*Order, error) {
	query, args, err := builder().
		Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	o, err := scanOrder(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (s *PostgresOrderStore) List(search string) ([]*Order, error) {
	q := builder().
		Select(orderColumns...).
		From("orders").
		OrderBy("ordered_at DESC", "id DESC")

	if search != "" {
		p := likePattern(search)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"id": p},
			squirrel.ILike{"customer_name": p},
			squirrel.Expr("EXISTS (SELECT 1 FROM unnest(items) AS item WHERE item ILIKE ?)", p),
		})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	list := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return list, nil
}

func (s *PostgresOrderStore) Delete(id string) error {
	query, args, err := builder().
		Delete("orders").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var status string
	if err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.Amount, &status, &o.Date, pq.Array(&o.Items)); err != nil {
		return nil, err
	}
	o.Status = OrderStatus(status)
	return &o, nil
}
