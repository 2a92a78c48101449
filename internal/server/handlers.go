// Package server exposes the memory subsystem over HTTP: chat, profile,
// storage lifecycle, and context retrieval endpoints, plus a WebSocket feed
// of profile updates.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/driftlock/recall/internal/chat"
	"github.com/driftlock/recall/internal/memory"
	"github.com/driftlock/recall/internal/vectorstore"
)

// APIHandlers bundles the HTTP endpoints.
type APIHandlers struct {
	memory *memory.Service
	chat   *chat.Service
}

// NewAPIHandlers creates the API handler set.
func NewAPIHandlers(mem *memory.Service, chatSvc *chat.Service) *APIHandlers {
	return &APIHandlers{memory: mem, chat: chatSvc}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

func ownerFromQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_OWNER", "owner_id is required")
		return "", false
	}
	return ownerID, true
}

type chatRequest struct {
	OwnerID string `json:"owner_id"`
	Message string `json:"message"`
	Stream  bool   `json:"stream"`
}

type chatResponse struct {
	Reply       string `json:"reply"`
	ContextUsed int    `json:"context_used"`
}

// HandleChat runs one chat turn. With "stream": true the response is
// server-sent events; otherwise a single JSON object.
func (h *APIHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	if req.Stream {
		h.handleChatStream(w, r, req)
		return
	}

	resp, err := h.chat.Converse(r.Context(), chat.Request{
		OwnerID: req.OwnerID,
		Message: req.Message,
	})
	if err != nil {
		if resp != nil {
			// Reply was generated but recording failed; surface both.
			log.Printf("server: turn recording failed for %s: %v", req.OwnerID, err)
			writeError(w, http.StatusInternalServerError, "PERSISTENCE_FAILED", "failed to record conversation turn")
			return
		}
		writeError(w, http.StatusBadGateway, "GENERATION_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: resp.Reply, ContextUsed: resp.ContextUsed})
}

func (h *APIHandlers) handleChatStream(w http.ResponseWriter, r *http.Request, req chatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAM_UNSUPPORTED", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	resp, err := h.chat.Converse(r.Context(), chat.Request{
		OwnerID: req.OwnerID,
		Message: req.Message,
		OnFragment: func(fragment string) error {
			data, _ := json.Marshal(map[string]string{"delta": fragment})
			if _, werr := fmt.Fprintf(w, "data: %s\n\n", data); werr != nil {
				return werr
			}
			flusher.Flush()
			return nil
		},
	})
	if err != nil && resp == nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		return
	}
	if err != nil {
		log.Printf("server: turn recording failed for %s: %v", req.OwnerID, err)
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// HandleProfile serves GET and DELETE for an owner's profile.
func (h *APIHandlers) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromQuery(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := h.memory.GetProfile(r.Context(), ownerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "PROFILE_LOAD_FAILED", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := h.memory.DeleteProfile(r.Context(), ownerID); err != nil {
			writeError(w, http.StatusInternalServerError, "PROFILE_DELETE_FAILED", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET or DELETE")
	}
}

// HandleStorage serves the storage lifecycle: POST provisions, GET checks
// existence, DELETE tears down.
func (h *APIHandlers) HandleStorage(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromQuery(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		dedicated := r.URL.Query().Get("dedicated") == "true"
		desc, err := h.memory.ProvisionStorage(r.Context(), ownerID, dedicated)
		if err != nil {
			var provErr *vectorstore.ProvisioningError
			if errors.As(err, &provErr) {
				// Retryable: the failed attempt is forgotten server-side.
				writeError(w, http.StatusServiceUnavailable, "PROVISIONING_FAILED", provErr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "PROVISIONING_FAILED", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, desc)
	case http.MethodGet:
		exists, mode, err := h.memory.StorageExists(r.Context(), ownerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "STORAGE_CHECK_FAILED", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exists": exists, "mode": mode})
	case http.MethodDelete:
		if err := h.memory.TeardownStorage(r.Context(), ownerID); err != nil {
			writeError(w, http.StatusInternalServerError, "TEARDOWN_FAILED", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST, GET, or DELETE")
	}
}

// HandleContext returns the retrieved context for a query, chronologically
// ordered. Retrieval failures surface as an empty list, not an error.
func (h *APIHandlers) HandleContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET")
		return
	}
	ownerID, ok := ownerFromQuery(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "MISSING_QUERY", "q is required")
		return
	}

	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			topK = n
		}
	}

	messages := h.memory.QueryContext(r.Context(), ownerID, query, topK)
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// HandleHealth is a liveness probe.
func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
