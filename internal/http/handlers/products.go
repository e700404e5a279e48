package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
	"github.com/ir-comercio/ir-comercio-sistema/internal/repo"
)

// ProductHandler serves the price-table API
type ProductHandler struct {
	products repo.ProductRepo
	logger   *zap.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(products repo.ProductRepo, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{products: products, logger: logger.Named("tabela-precos")}
}

type productInput struct {
	Nome      string   `json:"nome"`
	Categoria string   `json:"categoria"`
	Preco     *float64 `json:"preco"`
	Descricao string   `json:"descricao"`
	Estoque   int      `json:"estoque"`
}

func (in productInput) missing() []string {
	var missing []string
	if strings.TrimSpace(in.Nome) == "" {
		missing = append(missing, "nome")
	}
	if strings.TrimSpace(in.Categoria) == "" {
		missing = append(missing, "categoria")
	}
	if in.Preco == nil {
		missing = append(missing, "preco")
	}
	return missing
}

func (in productInput) toModel() model.Product {
	p := model.Product{
		Nome:      strings.TrimSpace(in.Nome),
		Categoria: strings.TrimSpace(in.Categoria),
		Descricao: optional(in.Descricao),
		Estoque:   in.Estoque,
	}
	if in.Preco != nil {
		p.Preco = *in.Preco
	}
	return p
}

func (h *ProductHandler) respondList(w http.ResponseWriter, op string, products []model.Product, err error) {
	if err != nil {
		h.logger.Error(op, zap.Error(err))
		respondServerError(w, "failed to "+op, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// HandleList handles GET /api/produtos
func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	h.respondList(w, "list products", products, err)
}

// HandleSearch handles GET /api/produtos/search/{termo}
func (h *ProductHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.Search(r.Context(), chi.URLParam(r, "termo"))
	h.respondList(w, "search products", products, err)
}

// HandleByCategory handles GET /api/produtos/categoria/{categoria}
func (h *ProductHandler) HandleByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListByCategory(r.Context(), chi.URLParam(r, "categoria"))
	h.respondList(w, "filter products", products, err)
}

// HandleGet handles GET /api/produtos/{id}
func (h *ProductHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusNotFound, "product not found")
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.respondRepoError(w, "failed to get product", err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// HandleCreate handles POST /api/produtos
func (h *ProductHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if missing := in.missing(); len(missing) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "missing required fields",
			"required": []string{"nome", "categoria", "preco"},
			"missing":  missing,
		})
		return
	}

	product, err := h.products.Create(r.Context(), in.toModel())
	if err != nil {
		h.logger.Error("create product", zap.Error(err))
		respondServerError(w, "failed to create product", err)
		return
	}
	h.logger.Info("product created", zap.String("id", product.ID.String()), zap.String("nome", product.Nome))
	respondJSON(w, http.StatusCreated, product)
}

// HandleUpdate handles PUT /api/produtos/{id}
func (h *ProductHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusNotFound, "product not found")
		return
	}
	var in productInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if missing := in.missing(); len(missing) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "missing required fields",
			"required": []string{"nome", "categoria", "preco"},
			"missing":  missing,
		})
		return
	}

	p := in.toModel()
	p.ID = id
	product, err := h.products.Update(r.Context(), p)
	if err != nil {
		h.respondRepoError(w, "failed to update product", err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// HandleDelete handles DELETE /api/produtos/{id}
func (h *ProductHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondWithError(w, http.StatusNotFound, "product not found")
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete product", zap.Error(err))
		respondServerError(w, "failed to delete product", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "product removed"})
}

func (h *ProductHandler) respondRepoError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "product not found")
		return
	}
	h.logger.Error(message, zap.Error(err))
	respondServerError(w, message, err)
}
