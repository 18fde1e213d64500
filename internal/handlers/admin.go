package handlers

import (
	"net/http"

	"github.com/example/talos/internal/auth"
	"github.com/example/talos/internal/types"
	"github.com/example/talos/pkg/jsonutil"
)

// AdminHandler issues and revokes operator API keys. The admin token is
// checked by middleware in front of it.
type AdminHandler struct {
	Store auth.APIKeyCreator
}

func NewAdminHandler(store auth.APIKeyCreator) *AdminHandler {
	return &AdminHandler{Store: store}
}

// CreateKey handles POST /admin/keys. The plaintext key is only ever in this
// response.
func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req types.CreateKeyRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	key := auth.NewKey()
	if err := h.Store.Create(r.Context(), key, true, req.Owner); err != nil {
		jsonutil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonutil.JSON(w, http.StatusOK, types.CreateKeyResponse{
		Key:     key,
		Prefix:  auth.HashPrefix(key),
		Active:  true,
		Owner:   req.Owner,
		Created: types.NowRFC3339(),
	})
}

type revokeKeyRequest struct {
	Key string `json:"key"`
}

// RevokeKey handles DELETE /admin/keys.
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	var req revokeKeyRequest
	if err := jsonutil.Decode(r, &req); err != nil || req.Key == "" {
		jsonutil.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	if err := h.Store.Revoke(r.Context(), req.Key); err != nil {
		jsonutil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
