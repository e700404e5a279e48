package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
)

// OrderRepo defines persistence for purchase orders
type OrderRepo interface {
	List(ctx context.Context) ([]model.Order, error)
	Get(ctx context.Context, id uuid.UUID) (model.Order, error)
	Create(ctx context.Context, o model.Order) (model.Order, error)
	Update(ctx context.Context, o model.Order) (model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (model.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type orderRepo struct {
	db *sql.DB
}

// NewOrderRepo creates a new OrderRepo instance
func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, numero_ordem, responsavel, data_ordem, razao_social, nome_fantasia, cnpj,
	endereco_fornecedor, site, contato, telefone, email, items, valor_total, frete, local_entrega,
	prazo_entrega, transporte, forma_pagamento, prazo_pagamento, dados_bancarios, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (model.Order, error) {
	var o model.Order
	var items []byte
	err := row.Scan(&o.ID, &o.NumeroOrdem, &o.Responsavel, &o.DataOrdem, &o.RazaoSocial, &o.NomeFantasia,
		&o.CNPJ, &o.EnderecoFornecedor, &o.Site, &o.Contato, &o.Telefone, &o.Email, &items, &o.ValorTotal,
		&o.Frete, &o.LocalEntrega, &o.PrazoEntrega, &o.Transporte, &o.FormaPagamento, &o.PrazoPagamento,
		&o.DadosBancarios, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	o.Items = items
	return o, err
}

func itemsParam(o model.Order) string {
	if len(o.Items) == 0 {
		return "[]"
	}
	return string(o.Items)
}

func orderNotFound(id uuid.UUID, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return err
}

// List returns all orders, newest first
func (r *orderRepo) List(ctx context.Context) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM ordens_compra ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Get returns one order
func (r *orderRepo) Get(ctx context.Context, id uuid.UUID) (model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM ordens_compra WHERE id = $1`, id))
	if err != nil {
		return model.Order{}, orderNotFound(id, err)
	}
	return o, nil
}

// Create inserts an order
func (r *orderRepo) Create(ctx context.Context, o model.Order) (model.Order, error) {
	created, err := scanOrder(r.db.QueryRowContext(ctx, `
		INSERT INTO ordens_compra (numero_ordem, responsavel, data_ordem, razao_social, nome_fantasia, cnpj,
			endereco_fornecedor, site, contato, telefone, email, items, valor_total, frete, local_entrega,
			prazo_entrega, transporte, forma_pagamento, prazo_pagamento, dados_bancarios, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING `+orderColumns,
		o.NumeroOrdem, o.Responsavel, o.DataOrdem, o.RazaoSocial, o.NomeFantasia, o.CNPJ,
		o.EnderecoFornecedor, o.Site, o.Contato, o.Telefone, o.Email, itemsParam(o), o.ValorTotal, o.Frete,
		o.LocalEntrega, o.PrazoEntrega, o.Transporte, o.FormaPagamento, o.PrazoPagamento, o.DadosBancarios, o.Status))
	if err != nil {
		return model.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

// Update replaces all editable fields of an order
func (r *orderRepo) Update(ctx context.Context, o model.Order) (model.Order, error) {
	updated, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE ordens_compra SET
			numero_ordem = $2, responsavel = $3, data_ordem = $4, razao_social = $5, nome_fantasia = $6,
			cnpj = $7, endereco_fornecedor = $8, site = $9, contato = $10, telefone = $11, email = $12,
			items = $13::jsonb, valor_total = $14, frete = $15, local_entrega = $16, prazo_entrega = $17,
			transporte = $18, forma_pagamento = $19, prazo_pagamento = $20, dados_bancarios = $21,
			status = $22, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		o.ID, o.NumeroOrdem, o.Responsavel, o.DataOrdem, o.RazaoSocial, o.NomeFantasia, o.CNPJ,
		o.EnderecoFornecedor, o.Site, o.Contato, o.Telefone, o.Email, itemsParam(o), o.ValorTotal, o.Frete,
		o.LocalEntrega, o.PrazoEntrega, o.Transporte, o.FormaPagamento, o.PrazoPagamento, o.DadosBancarios, o.Status))
	if err != nil {
		return model.Order{}, orderNotFound(o.ID, err)
	}
	return updated, nil
}

// UpdateStatus changes only the status of an order
func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (model.Order, error) {
	updated, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE ordens_compra SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+orderColumns,
		id, status))
	if err != nil {
		return model.Order{}, orderNotFound(id, err)
	}
	return updated, nil
}

// Delete removes an order. Deleting a missing order is not an error.
func (r *orderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ordens_compra WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}
