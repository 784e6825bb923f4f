package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"cgl-backend/internal/db"
)

var dialect = goqu.Dialect("postgres")

var columns = []any{"id", "title", "author", "isbn", "published_year", "description", "created_at", "updated_at"}

// Conn hands out the shared database handle once it is connected.
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (Book, error) {
	var b Book
	var year sql.NullInt64
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &year, &b.Description, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return Book{}, err
	}
	if year.Valid {
		value := int(year.Int64)
		b.PublishedYear = &value
	}
	return b, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Book, error) {
	database, err := r.handle()
	if err != nil {
		return nil, err
	}

	query, args, err := listQuery(filter)
	if err != nil {
		return nil, err
	}

	rows, err := database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := make([]Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	return books, nil
}

func listQuery(filter ListFilter) (string, []any, error) {
	ds := dialect.From("books").Prepared(true).
		Select(columns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(filter.Limit)).
		Offset(uint(filter.Offset))
	if filter.Author != "" {
		ds = ds.Where(goqu.C("author").ILike(escapeLike(filter.Author)))
	}
	if filter.Query != "" {
		pattern := "%" + escapeLike(filter.Query) + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").ILike(pattern),
			goqu.C("author").ILike(pattern),
			goqu.C("isbn").ILike(pattern),
		))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build list books query: %w", err)
	}
	return query, args, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Book, error) {
	database, err := r.handle()
	if err != nil {
		return Book{}, err
	}

	b, err := scanBook(database.QueryRowContext(ctx, `
		SELECT id, title, author, isbn, published_year, description, created_at, updated_at
		FROM books
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("query book: %w", err)
	}

	return b, nil
}

func (r *Repository) Create(ctx context.Context, input Input) (Book, error) {
	database, err := r.handle()
	if err != nil {
		return Book{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Book{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	b := Book{
		ID:            id.String(),
		Title:         input.Title,
		Author:        input.Author,
		ISBN:          input.ISBN,
		PublishedYear: input.PublishedYear,
		Description:   input.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = database.ExecContext(ctx, `
		INSERT INTO books (id, title, author, isbn, published_year, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, b.ID, b.Title, b.Author, b.ISBN, nullableYear(b.PublishedYear), b.Description, now)
	if err != nil {
		return Book{}, fmt.Errorf("insert book: %w", err)
	}

	return b, nil
}

func (r *Repository) Update(ctx context.Context, id string, input Input) (Book, error) {
	database, err := r.handle()
	if err != nil {
		return Book{}, err
	}

	b, err := scanBook(database.QueryRowContext(ctx, `
		UPDATE books
		SET title = $2, author = $3, isbn = $4, published_year = $5, description = $6, updated_at = $7
		WHERE id = $1
		RETURNING id, title, author, isbn, published_year, description, created_at, updated_at
	`, id, input.Title, input.Author, input.ISBN, nullableYear(input.PublishedYear), input.Description, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("update book: %w", err)
	}

	return b, nil
}

func (r *Repository) Patch(ctx context.Context, id string, patch Patch) (Book, error) {
	database, err := r.handle()
	if err != nil {
		return Book{}, err
	}

	query, args, err := patchQuery(id, patch, time.Now().UTC())
	if err != nil {
		return Book{}, err
	}

	b, err := scanBook(database.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, fmt.Errorf("patch book: %w", err)
	}

	return b, nil
}

func patchQuery(id string, patch Patch, now time.Time) (string, []any, error) {
	record := goqu.Record{"updated_at": now}
	if patch.Title != nil {
		record["title"] = *patch.Title
	}
	if patch.Author != nil {
		record["author"] = *patch.Author
	}
	if patch.ISBN != nil {
		record["isbn"] = *patch.ISBN
	}
	if patch.PublishedYear != nil {
		record["published_year"] = *patch.PublishedYear
	}
	if patch.Description != nil {
		record["description"] = *patch.Description
	}

	query, args, err := dialect.Update("books").Prepared(true).
		Set(record).
		Where(goqu.C("id").Eq(id)).
		Returning(columns...).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build patch book query: %w", err)
	}
	return query, args, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	database, err := r.handle()
	if err != nil {
		return err
	}

	res, err := database.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
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

func nullableYear(year *int) any {
	if year == nil {
		return nil
	}
	return *year
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
