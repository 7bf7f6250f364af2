// Package sqlxrepos implements the domain repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	Role         string      `db:"role"`
	BatchID      null.String `db:"batch_id"`
	IsActive     null.Bool   `db:"is_active"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r userRow) unrow() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		BatchID:      r.BatchID.String,
		IsActive:     r.IsActive.Ptr(),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
}

func rowUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
		Role:         usr.Role,
		BatchID:      null.NewString(usr.BatchID, usr.BatchID != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := `SELECT EXISTS(SELECT 1 FROM "user" WHERE email = ?`
	args := []interface{}{email}

	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	query += `)`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := rowUser(usr)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (id, name, email, password_hash, role, batch_id, is_active, created_at, updated_at, last_login)
		VALUES (:id, :name, :email, :password_hash, :role, :batch_id, :is_active, :created_at, :updated_at, :last_login)`,
		row,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.unrow(), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var row userRow

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE id = $1`, filter.ID); err != nil {
			return user.User{}, repo.trapNoRowsErr(err, "finding user by ID")
		}
	} else {
		if err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE email = $1`, filter.Email); err != nil {
			return user.User{}, repo.trapNoRowsErr(err, "finding user by email")
		}
	}
	return row.unrow(), nil
}

func (repo userRepository) userFilterClauses(filter *user.QueryFilter) (string, []interface{}) {
	if filter == nil || filter.IsEmpty() {
		return "", nil
	}

	var (
		clauses []string
		args    []interface{}
	)
	if filter.Search != "" {
		clauses = append(clauses, "(name ILIKE ? OR email ILIKE ?)")
		val := "%" + filter.Search + "%"
		args = append(args, val, val)
	}
	if filter.Role != "" {
		clauses = append(clauses, "role = ?")
		args = append(args, filter.Role)
	}
	if filter.BatchID != "" {
		clauses = append(clauses, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if filter.IsActive != nil {
		clauses = append(clauses, "is_active = ?")
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, filter.CreatedTo.UTC())
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	query := `SELECT * FROM "user"`
	where, args := repo.userFilterClauses(filter)
	query += where
	query += orderByClause(ordering, "created_at DESC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.unrow())
	}
	return users, nil
}

func (repo userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter) (int, error) {
	query := `SELECT COUNT(*) FROM "user"`
	where, args := repo.userFilterClauses(filter)
	query += where

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(query), args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool, batchID *string) (user.User, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if usr.Name != "" {
		set("name", usr.Name)
	}
	if usr.Email != "" {
		set("email", usr.Email)
	}
	if usr.Role != "" {
		set("role", usr.Role)
	}
	if len(usr.PasswordHash) > 0 {
		set("password_hash", usr.PasswordHash)
	}
	if !usr.LastLogin.IsZero() {
		set("last_login", usr.LastLogin.UTC())
	}
	if !usr.UpdatedAt.IsZero() {
		set("updated_at", usr.UpdatedAt.UTC())
	}
	if isActive != nil {
		set("is_active", *isActive)
	}
	if batchID != nil {
		// empty string unassigns
		set("batch_id", null.NewString(*batchID, *batchID != ""))
	}
	if len(sets) == 0 {
		return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	}

	query := `UPDATE "user" SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, usr.ID)

	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

// orderByClause renders ordering, falling back to the given default.
// Terms that are not plain column identifiers are dropped.
func orderByClause(ordering []core.DBOrdering, dflt string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if ord.Valid() {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		if dflt == "" {
			return ""
		}
		return " ORDER BY " + dflt
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
