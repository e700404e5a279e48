package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
)

// ProductRepo defines persistence for the price table
type ProductRepo interface {
	List(ctx context.Context) ([]model.Product, error)
	Get(ctx context.Context, id uuid.UUID) (model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) (model.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, term string) ([]model.Product, error)
	ListByCategory(ctx context.Context, category string) ([]model.Product, error)
}

type productRepo struct {
	db *sql.DB
}

// NewProductRepo creates a new ProductRepo instance
func NewProductRepo(db *sql.DB) ProductRepo {
	return &productRepo{db: db}
}

const productColumns = `id, nome, categoria, preco, descricao, estoque, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Nome, &p.Categoria, &p.Preco, &p.Descricao, &p.Estoque, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *productRepo) query(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// List returns all products ordered by name
func (r *productRepo) List(ctx context.Context) ([]model.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM produtos ORDER BY nome ASC`)
}

// Get returns one product
func (r *productRepo) Get(ctx context.Context, id uuid.UUID) (model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM produtos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return model.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Create inserts a product
func (r *productRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	created, err := scanProduct(r.db.QueryRowContext(ctx, `
		INSERT INTO produtos (nome, categoria, preco, descricao, estoque)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		p.Nome, p.Categoria, p.Preco, p.Descricao, p.Estoque))
	if err != nil {
		return model.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

// Update replaces the editable fields of a product
func (r *productRepo) Update(ctx context.Context, p model.Product) (model.Product, error) {
	updated, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE produtos SET nome = $2, categoria = $3, preco = $4, descricao = $5, estoque = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Nome, p.Categoria, p.Preco, p.Descricao, p.Estoque))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Product{}, fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
		}
		return model.Product{}, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

// Delete removes a product. Deleting a missing product is not an error.
func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM produtos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// Search matches term case-insensitively against name, category and description
func (r *productRepo) Search(ctx context.Context, term string) ([]model.Product, error) {
	pattern := "%" + escapeLike(term) + "%"
	return r.query(ctx, `
		SELECT `+productColumns+` FROM produtos
		WHERE nome ILIKE $1 OR categoria ILIKE $1 OR descricao ILIKE $1
		ORDER BY nome ASC
	`, pattern)
}

// ListByCategory returns the products of one category ordered by name
func (r *productRepo) ListByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM produtos WHERE categoria = $1 ORDER BY nome ASC`, category)
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
