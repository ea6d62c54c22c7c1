package rest

import (
	"encoding/json"
	"net/http"

	perrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/internal/service"
	"github.com/abgdnv/storemanager/pkg/web"
)

type productList struct {
	Products []service.ProductDto `json:"products"`
}

// FindProductByID retrieves a product by its ID.
func (h *Handler) FindProductByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.logger.DebugContext(r.Context(), "Received request to find product by ID", "ID", id)

	found, err := h.products.FindByID(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "Error retrieving product", err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// FindAllProducts retrieves a list of all products.
func (h *Handler) FindAllProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.FindAll(r.Context())
	if err != nil {
		h.respondErr(w, r, "Error retrieving product list", err)
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, productList{Products: list})
}

// CreateProduct handles the creation of a new product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	created, err := h.products.Create(r.Context(), in)
	if err != nil {
		h.respondErr(w, r, "Error creating product", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID)
	web.RespondJSON(w, h.logger, http.StatusCreated, created)
}

// UpdateProduct replaces name and quantity of a product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	updated, err := h.products.Update(r.Context(), id, in)
	if err != nil {
		h.respondErr(w, r, "Error updating product", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID)
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

// DeleteProduct removes a product and answers with its last state.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	deleted, err := h.products.DeleteByID(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "Error deleting product", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Product deleted successfully", "ID", deleted.ID)
	web.RespondJSON(w, h.logger, http.StatusOK, deleted)
}

func (h *Handler) decodeProduct(w http.ResponseWriter, r *http.Request) (service.ProductInput, bool) {
	var in service.ProductInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		h.respondErr(w, r, "Error decoding request body", fmtDecode(perrors.ErrInvalidBody, err))
		return in, false
	}
	return in, true
}
