package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/middleware"
	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
	"github.com/ir-comercio/ir-comercio-sistema/internal/repo"
)

const (
	defaultOrderStatus = "aberta"
	defaultOrderTotal  = "R$ 0,00"
)

// OrderHandler serves the purchase-order API
type OrderHandler struct {
	orders repo.OrderRepo
	logger *zap.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders repo.OrderRepo, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{orders: orders, logger: logger.Named("ordem-compra")}
}

// orderInput is the request body for create and update. Browser clients send camelCase fields.
type orderInput struct {
	NumeroOrdem        string          `json:"numeroOrdem"`
	Responsavel        string          `json:"responsavel"`
	DataOrdem          string          `json:"dataOrdem"`
	RazaoSocial        string          `json:"razaoSocial"`
	NomeFantasia       string          `json:"nomeFantasia"`
	CNPJ               string          `json:"cnpj"`
	EnderecoFornecedor string          `json:"enderecoFornecedor"`
	Site               string          `json:"site"`
	Contato            string          `json:"contato"`
	Telefone           string          `json:"telefone"`
	Email              string          `json:"email"`
	Items              json.RawMessage `json:"items"`
	ValorTotal         string          `json:"valorTotal"`
	Frete              string          `json:"frete"`
	LocalEntrega       string          `json:"localEntrega"`
	PrazoEntrega       string          `json:"prazoEntrega"`
	Transporte         string          `json:"transporte"`
	FormaPagamento     string          `json:"formaPagamento"`
	PrazoPagamento     string          `json:"prazoPagamento"`
	DadosBancarios     string          `json:"dadosBancarios"`
	Status             string          `json:"status"`
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func (in orderInput) toModel() model.Order {
	o := model.Order{
		NumeroOrdem:        in.NumeroOrdem,
		Responsavel:        in.Responsavel,
		DataOrdem:          in.DataOrdem,
		RazaoSocial:        in.RazaoSocial,
		NomeFantasia:       optional(in.NomeFantasia),
		CNPJ:               in.CNPJ,
		EnderecoFornecedor: optional(in.EnderecoFornecedor),
		Site:               optional(in.Site),
		Contato:            optional(in.Contato),
		Telefone:           optional(in.Telefone),
		Email:              optional(in.Email),
		Items:              in.Items,
		ValorTotal:         in.ValorTotal,
		Frete:              optional(in.Frete),
		LocalEntrega:       optional(in.LocalEntrega),
		PrazoEntrega:       optional(in.PrazoEntrega),
		Transporte:         optional(in.Transporte),
		FormaPagamento:     in.FormaPagamento,
		PrazoPagamento:     in.PrazoPagamento,
		DadosBancarios:     optional(in.DadosBancarios),
		Status:             in.Status,
	}
	if len(o.Items) == 0 || string(o.Items) == "null" {
		o.Items = json.RawMessage("[]")
	}
	if o.ValorTotal == "" {
		o.ValorTotal = defaultOrderTotal
	}
	if o.Status == "" {
		o.Status = defaultOrderStatus
	}
	return o
}

func (h *OrderHandler) userField(r *http.Request) zap.Field {
	if id, ok := middleware.GetIdentity(r.Context()); ok {
		return zap.String("user", id.Username)
	}
	return zap.Skip()
}

// HandleList handles GET /api/ordens
func (h *OrderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.logger.Error("list orders", zap.Error(err))
		respondServerError(w, "failed to list orders", err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// HandleGet handles GET /api/ordens/{id}
func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusNotFound, "order not found")
		return
	}
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.respondRepoError(w, "failed to get order", err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// HandleCreate handles POST /api/ordens
func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in orderInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	order, err := h.orders.Create(r.Context(), in.toModel())
	if err != nil {
		h.logger.Error("create order", zap.Error(err))
		respondServerError(w, "failed to create order", err)
		return
	}
	h.logger.Info("order created", zap.String("id", order.ID.String()), h.userField(r))
	respondJSON(w, http.StatusCreated, order)
}

// HandleUpdate handles PUT /api/ordens/{id}
func (h *OrderHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusNotFound, "order not found")
		return
	}
	var in orderInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o := in.toModel()
	o.ID = id
	order, err := h.orders.Update(r.Context(), o)
	if err != nil {
		h.respondRepoError(w, "failed to update order", err)
		return
	}
	h.logger.Info("order updated", zap.String("id", id.String()), h.userField(r))
	respondJSON(w, http.StatusOK, order)
}

type statusInput struct {
	Status string `json:"status"`
}

// HandleUpdateStatus handles PATCH /api/ordens/{id}/status
func (h *OrderHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusNotFound, "order not found")
		return
	}
	var in statusInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.Status = strings.TrimSpace(in.Status)
	if in.Status == "" {
		respondWithError(w, http.StatusBadRequest, "status is required")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, in.Status)
	if err != nil {
		h.respondRepoError(w, "failed to update status", err)
		return
	}
	h.logger.Info("order status changed", zap.String("id", id.String()), zap.String("status", in.Status), h.userField(r))
	respondJSON(w, http.StatusOK, order)
}

// HandleDelete handles DELETE /api/ordens/{id}
func (h *OrderHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusNotFound, "order not found")
		return
	}
	if err := h.orders.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete order", zap.Error(err))
		respondServerError(w, "failed to delete order", err)
		return
	}
	h.logger.Info("order deleted", zap.String("id", id.String()), h.userField(r))
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "order removed"})
}

func (h *OrderHandler) respondRepoError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "order not found"})
		return
	}
	h.logger.Error(message, zap.Error(err))
	respondServerError(w, message, err)
}
