package rest

import (
	"encoding/json"
	"fmt"
	"net/http"

	perrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/internal/service"
	"github.com/abgdnv/storemanager/pkg/web"
)

type saleList struct {
	Sales []service.SaleDto `json:"sales"`
}

// RegisterSale debits stock for every item and records the sale.
func (h *Handler) RegisterSale(w http.ResponseWriter, r *http.Request) {
	items, ok := h.decodeSaleItems(w, r)
	if !ok {
		return
	}

	sale, err := h.sales.Register(r.Context(), items)
	if err != nil {
		h.respondErr(w, r, "Error registering sale", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Sale registered successfully", "ID", sale.ID)
	web.RespondJSON(w, h.logger, http.StatusOK, sale)
}

// FindAllSales retrieves a list of all sales.
func (h *Handler) FindAllSales(w http.ResponseWriter, r *http.Request) {
	list, err := h.sales.FindAll(r.Context())
	if err != nil {
		h.respondErr(w, r, "Error retrieving sale list", err)
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved sale list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, saleList{Sales: list})
}

// FindSaleByID retrieves a sale by its ID.
func (h *Handler) FindSaleByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	found, err := h.sales.FindByID(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "Error retrieving sale", err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// ReplaceSale swaps the items of a sale, moving stock accordingly.
func (h *Handler) ReplaceSale(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	items, ok := h.decodeSaleItems(w, r)
	if !ok {
		return
	}

	sale, err := h.sales.Replace(r.Context(), id, items)
	if err != nil {
		h.respondErr(w, r, "Error replacing sale", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Sale replaced successfully", "ID", sale.ID)
	web.RespondJSON(w, h.logger, http.StatusOK, sale)
}

// CancelSale restores the stock of a sale, removes it and answers with its last state.
func (h *Handler) CancelSale(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sale, err := h.sales.Cancel(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "Error cancelling sale", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Sale cancelled successfully", "ID", sale.ID)
	web.RespondJSON(w, h.logger, http.StatusOK, sale)
}

// decodeSaleItems reads the item array. Anything that is not an array of objects is a malformed sale.
func (h *Handler) decodeSaleItems(w http.ResponseWriter, r *http.Request) ([]service.SaleItemInput, bool) {
	var items []service.SaleItemInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		h.respondErr(w, r, "Error decoding request body", fmtDecode(perrors.ErrWrongSaleItems, err))
		return nil, false
	}
	return items, true
}

func fmtDecode(clientErr *perrors.Error, err error) error {
	return fmt.Errorf("%w: %w", clientErr, err)
}
