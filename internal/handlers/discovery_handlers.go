package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"treechat-backend/internal/auth"
	"treechat-backend/internal/models"
	"treechat-backend/internal/services"
	"treechat-backend/pkg/httputil"
)

// DiscoveryHandlers exposes the shared-discoveries feed over HTTP.
type DiscoveryHandlers struct {
	discoveries *services.DiscoveryService
}

// NewDiscoveryHandlers creates a new DiscoveryHandlers instance.
func NewDiscoveryHandlers(discoveries *services.DiscoveryService) *DiscoveryHandlers {
	return &DiscoveryHandlers{discoveries: discoveries}
}

// treeID reads the tree scope from the authenticated request context.
func treeID(r *http.Request) string {
	id, _ := auth.GetTreeIDFromContext(r.Context())
	return id
}

// HandleListDiscoveries returns the visible (non-dismissed) feed. Upstream
// failures still yield a renderable payload with an error message.
func (h *DiscoveryHandlers) HandleListDiscoveries(w http.ResponseWriter, r *http.Request) {
	feed := h.discoveries.VisibleDiscoveries(r.Context(), treeID(r))
	httputil.RespondJSON(w, http.StatusOK, feed)
}

// HandleShareDiscovery publishes a chat message to the shared feed.
func (h *DiscoveryHandlers) HandleShareDiscovery(w http.ResponseWriter, r *http.Request) {
	var req models.ShareDiscoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	shared, err := h.discoveries.ShareMessage(r.Context(), req.Content)
	if err != nil {
		httputil.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.ShareDiscoveryResponse{Shared: shared})
}

// HandleDismissDiscovery records a discovery as dismissed for this tree.
func (h *DiscoveryHandlers) HandleDismissDiscovery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "discoveryID")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Discovery id is required")
		return
	}

	tree := treeID(r)
	if err := h.discoveries.Dismiss(tree, id); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to dismiss discovery: "+err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string][]string{
		"dismissed": h.discoveries.DismissedIDs(tree),
	})
}
