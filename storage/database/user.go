package database

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// sortable user columns
var userOrderings = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := exec(ctx, conn(ctx, repo.db), psql.Insert("users").
		Columns("id", "name", "email", "role", "is_active", "password_hash", "created_at", "updated_at", "last_login").
		Values(usr.ID, usr.Name, usr.Email, usr.Role, usr.IsActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, usr.LastLogin))
	if err != nil {
		return user.User{}, mapError(err, nil)
	}
	return usr, nil
}

func (repo *userRepository) getBy(ctx context.Context, where sq.Eq) (user.User, error) {
	var usr user.User
	err := get(ctx, conn(ctx, repo.db), &usr, psql.Select("*").From("users").Where(where))
	return usr, mapError(err, user.ErrNotFound)
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getBy(ctx, sq.Eq{"id": id})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, sq.Eq{"email": email})
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	q := psql.Select("*").From("users")
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(sq.Or{sq.ILike{"name": pattern}, sq.ILike{"email": pattern}})
	}
	if filter.Role != "" {
		q = q.Where(sq.Eq{"role": filter.Role})
	}
	if filter.IsActive != nil {
		q = q.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	for _, ord := range ordering {
		if col, ok := userOrderings[ord.Field]; ok {
			q = q.OrderBy(core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(ordering) == 0 {
		q = q.OrderBy("created_at DESC")
	}

	users := make([]user.User, 0)
	if err := selectAll(ctx, conn(ctx, repo.db), &users, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	n, err := exec(ctx, conn(ctx, repo.db), psql.Update("users").
		SetMap(map[string]interface{}{
			"name":          usr.Name,
			"email":         usr.Email,
			"role":          usr.Role,
			"is_active":     usr.IsActive,
			"password_hash": usr.PasswordHash,
			"updated_at":    usr.UpdatedAt,
			"last_login":    usr.LastLogin,
		}).
		Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		return user.User{}, mapError(err, nil)
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
