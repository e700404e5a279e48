package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents a portal account. Users are provisioned by administrators, never by the portal itself.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Name         string
	IsAdmin      bool
	IsActive     bool
	Sector       string
	CreatedAt    time.Time
}

// Device represents a client endpoint identified by a caller-supplied device token
type Device struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	DeviceToken string
	Fingerprint string
	DeviceName  string
	IPAddress   string
	UserAgent   string
	IsActive    bool
	LastAccess  time.Time
	CreatedAt   time.Time
}

// Session represents a bearer session bound to a (user, device) pair.
// Only the SHA-256 hash of the session token is persisted.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	DeviceToken  string
	TokenHash    string
	IPAddress    string
	ExpiresAt    time.Time
	IsActive     bool
	LastActivity time.Time
	LogoutAt     *time.Time
	CreatedAt    time.Time
}

// SessionWithUser is an active session joined with the owning user's current state
type SessionWithUser struct {
	Session Session
	User    User
}

// LoginAttempt is an append-only audit record of a login attempt
type LoginAttempt struct {
	ID            uuid.UUID
	Username      string
	IPAddress     string
	DeviceToken   string
	Success       bool
	FailureReason *string
	Timestamp     time.Time
}

// Order is a purchase order (ordem de compra)
type Order struct {
	ID                 uuid.UUID       `json:"id"`
	NumeroOrdem        string          `json:"numero_ordem"`
	Responsavel        string          `json:"responsavel"`
	DataOrdem          string          `json:"data_ordem"`
	RazaoSocial        string          `json:"razao_social"`
	NomeFantasia       *string         `json:"nome_fantasia"`
	CNPJ               string          `json:"cnpj"`
	EnderecoFornecedor *string         `json:"endereco_fornecedor"`
	Site               *string         `json:"site"`
	Contato            *string         `json:"contato"`
	Telefone           *string         `json:"telefone"`
	Email              *string         `json:"email"`
	Items              json.RawMessage `json:"items"`
	ValorTotal         string          `json:"valor_total"`
	Frete              *string         `json:"frete"`
	LocalEntrega       *string         `json:"local_entrega"`
	PrazoEntrega       *string         `json:"prazo_entrega"`
	Transporte         *string         `json:"transporte"`
	FormaPagamento     string          `json:"forma_pagamento"`
	PrazoPagamento     string          `json:"prazo_pagamento"`
	DadosBancarios     *string         `json:"dados_bancarios"`
	Status             string          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Product is a price-table entry
type Product struct {
	ID        uuid.UUID `json:"id"`
	Nome      string    `json:"nome"`
	Categoria string    `json:"categoria"`
	Preco     float64   `json:"preco"`
	Descricao *string   `json:"descricao"`
	Estoque   int       `json:"estoque"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
