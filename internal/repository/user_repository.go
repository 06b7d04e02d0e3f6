package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/docmgmt-api/internal/models"
)

const userSelect = `SELECT u.id, u.username, u.password_hash, u.role_id, r.name AS role_name, r.permissions AS role_permissions
FROM users u JOIN roles r ON r.id = u.role_id`

type userRow struct {
	ID              int64          `db:"id"`
	Username        string         `db:"username"`
	PasswordHash    string         `db:"password_hash"`
	RoleID          int64          `db:"role_id"`
	RoleName        string         `db:"role_name"`
	RolePermissions pq.StringArray `db:"role_permissions"`
}

func (r userRow) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		RoleID:       r.RoleID,
		Role:         models.Role{ID: r.RoleID, Name: r.RoleName, Permissions: r.RolePermissions},
	}
}

// UserRepository provides database access for user accounts. Roles are always loaded with the user.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, userSelect+` WHERE u.username = $1 LIMIT 1`, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return row.toModel(), nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, userSelect+` WHERE u.id = $1 LIMIT 1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return row.toModel(), nil
}

// Create inserts a user and sets its generated id.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	const query = `INSERT INTO users (username, password_hash, role_id) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, user.Username, user.PasswordHash, user.Role.ID).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	user.RoleID = user.Role.ID
	return nil
}

// UpdateRole points the user at another role.
func (r *UserRepository) UpdateRole(ctx context.Context, userID, roleID int64) error {
	const query = `UPDATE users SET role_id = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, roleID)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
