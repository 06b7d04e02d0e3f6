package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docmgmt-api/internal/models"
)

// RoleRepository persists roles and their permission sets.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository creates a role repository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// FindByName returns the role with the given unique name.
func (r *RoleRepository) FindByName(ctx context.Context, name string) (*models.Role, error) {
	const query = `SELECT id, name, permissions FROM roles WHERE name = $1 LIMIT 1`
	var role models.Role
	if err := r.db.GetContext(ctx, &role, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find role by name: %w", err)
	}
	return &role, nil
}

// Create inserts a role. Duplicate names surface as ErrDuplicate.
func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	const query = `INSERT INTO roles (name, permissions) VALUES ($1, $2) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, role.Name, role.Permissions).Scan(&role.ID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create role: %w", ErrDuplicate)
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}
