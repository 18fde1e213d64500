package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/talos/internal/approval"
	"github.com/example/talos/internal/types"
	"github.com/example/talos/pkg/jsonutil"
	"github.com/go-chi/chi/v5"
)

// ApprovalHandler is the dashboard side of human approval.
type ApprovalHandler struct {
	Store approval.Store
}

func NewApprovalHandler(store approval.Store) *ApprovalHandler {
	return &ApprovalHandler{Store: store}
}

// List handles GET /admin/approvals.
func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Store.Pending(r.Context())
	if err != nil {
		jsonutil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pending == nil {
		pending = []approval.Request{}
	}
	jsonutil.JSON(w, http.StatusOK, pending)
}

// Decide handles POST /admin/approvals/{id}.
func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req types.DecisionRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	st := approval.Status(strings.ToUpper(req.Decision))
	if st != approval.Approved && st != approval.Rejected {
		jsonutil.Error(w, http.StatusBadRequest, "decision must be APPROVED or REJECTED")
		return
	}
	id := chi.URLParam(r, "id")
	err := h.Store.Decide(r.Context(), id, st)
	switch {
	case errors.Is(err, approval.ErrNotFound):
		jsonutil.Error(w, http.StatusNotFound, "no pending request "+id)
	case err != nil:
		jsonutil.Error(w, http.StatusInternalServerError, err.Error())
	default:
		jsonutil.JSON(w, http.StatusOK, map[string]string{"id": id, "status": string(st)})
	}
}
