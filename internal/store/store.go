package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-ledger/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Store-level sentinel for reception-number collisions; the numbering
// allocator retries on it.
var ErrReceptionNumberTaken = errors.New("reception number taken")

// Constraint names from migrations/001_init.sql
const (
	constraintReceptionNumber = "purchases_reception_number_key"
	constraintActiveSerial    = "instances_active_serial_idx"
)

// uniqueViolation returns the violated constraint name, or "" if err is not a
// uniqueness violation (postgres error 23505).
func uniqueViolation(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint
	}
	return ""
}

// GetProduct retrieves a tenant's product by ID
func (s *Store) GetProduct(ctx context.Context, tenantID, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductByUPC retrieves a tenant's product by UPC
func (s *Store) GetProductByUPC(ctx context.Context, tenantID int64, upc string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE upc = $1 AND tenant_id = $2", upc, tenantID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetSupplier retrieves a tenant's supplier by ID
func (s *Store) GetSupplier(ctx context.Context, tenantID, id int64) (*models.Supplier, error) {
	var supplier models.Supplier
	err := s.db.GetContext(ctx, &supplier,
		"SELECT * FROM suppliers WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// GetUserByPIN retrieves a tenant's user by exact plaintext PIN match
func (s *Store) GetUserByPIN(ctx context.Context, tenantID int64, pin string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT * FROM users WHERE tenant_id = $1 AND pin = $2", tenantID, pin)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUsersWithPINHash retrieves a tenant's users that carry a hashed PIN,
// for the legacy slow-comparison path.
func (s *Store) GetUsersWithPINHash(ctx context.Context, tenantID int64) ([]models.User, error) {
	var users []models.User
	err := s.db.SelectContext(ctx, &users,
		"SELECT * FROM users WHERE tenant_id = $1 AND pin_hash IS NOT NULL", tenantID)
	return users, err
}

// GetOperator retrieves a tenant's operator by ID
func (s *Store) GetOperator(ctx context.Context, tenantID, id int64) (*models.Operator, error) {
	var op models.Operator
	err := s.db.GetContext(ctx, &op,
		"SELECT * FROM operators WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetOperatorByPIN retrieves a tenant's operator by PIN
func (s *Store) GetOperatorByPIN(ctx context.Context, tenantID int64, pin string) (*models.Operator, error) {
	var op models.Operator
	err := s.db.GetContext(ctx, &op,
		"SELECT * FROM operators WHERE tenant_id = $1 AND pin = $2", tenantID, pin)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}
