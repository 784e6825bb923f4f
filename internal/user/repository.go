package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"cgl-backend/internal/db"
)

const uniqueViolation = "23505"

type Conn interface {
	DB() *sql.DB
}

type Repository struct {
	conn Conn
}

func NewRepository(conn Conn) *Repository {
	return &Repository{conn: conn}
}

func (r *Repository) handle() (*sql.DB, error) {
	database := r.conn.DB()
	if database == nil {
		return nil, db.ErrNotConnected
	}
	return database, nil
}

func (r *Repository) List(ctx context.Context) ([]User, error) {
	database, err := r.handle()
	if err != nil {
		return nil, err
	}

	rows, err := database.QueryContext(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM users
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	database, err := r.handle()
	if err != nil {
		return User{}, err
	}

	var u User
	err = database.QueryRowContext(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	return u, nil
}

func (r *Repository) Create(ctx context.Context, input Input) (User, error) {
	database, err := r.handle()
	if err != nil {
		return User{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	u := User{ID: id.String(), Name: input.Name, Email: input.Email, CreatedAt: now, UpdatedAt: now}

	_, err = database.ExecContext(ctx, `
		INSERT INTO users (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, u.ID, u.Name, u.Email, now)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	database, err := r.handle()
	if err != nil {
		return err
	}

	res, err := database.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
