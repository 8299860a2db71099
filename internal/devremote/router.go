// Package devremote is an in-memory stand-in for the production backend. It
// implements exactly the three remote verbs the sync processor uses, plus the
// health endpoint the connectivity monitor probes. Handy for local runs and
// end-to-end experiments without a real server.
package devremote

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/models"
)

type Handler struct {
	logger *logger.Logger

	mu      sync.RWMutex
	records map[models.EntityType]map[string]models.LocalRecord
}

func NewHandler(log *logger.Logger) *Handler {
	records := make(map[models.EntityType]map[string]models.LocalRecord)
	for _, t := range models.AllEntityTypes() {
		records[t] = make(map[string]models.LocalRecord)
	}

	return &Handler{logger: log, records: records}
}

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthz", h.health)

	router.Route("/api/{entity}", func(r chi.Router) {
		r.Post("/", h.insert)
		r.Get("/", h.list)
		r.Put("/{id}", h.upsert)
		r.Delete("/{id}", h.remove)
	})

	return router
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) insert(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entityType(w, r)
	if !ok {
		return
	}

	rec, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	// Insert is idempotent by record id: replaying a create after a crashed
	// drain overwrites with the same content instead of failing.
	h.mu.Lock()
	h.records[entity][rec.ID] = rec
	h.mu.Unlock()

	h.logger.Debug().
		Str("func", "Handler.insert").
		Str("entity", string(entity)).
		Str("id", rec.ID).
		Msg("record stored")

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entityType(w, r)
	if !ok {
		return
	}

	rec, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	rec.ID = chi.URLParam(r, "id")

	h.mu.Lock()
	h.records[entity][rec.ID] = rec
	h.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entityType(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")

	h.mu.Lock()
	_, existed := h.records[entity][id]
	delete(h.records[entity], id)
	h.mu.Unlock()

	if !existed {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entityType(w, r)
	if !ok {
		return
	}

	h.mu.RLock()
	out := make([]models.LocalRecord, 0, len(h.records[entity]))
	for _, rec := range h.records[entity] {
		out = append(out, rec)
	}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logger.Error().Err(err).
			Str("func", "Handler.list").
			Msg("encode records")
	}
}

func (h *Handler) entityType(w http.ResponseWriter, r *http.Request) (models.EntityType, bool) {
	entity := models.EntityType(chi.URLParam(r, "entity"))
	if !models.ValidEntityType(entity) {
		http.Error(w, "unknown entity type", http.StatusBadRequest)
		return "", false
	}
	return entity, true
}

func (h *Handler) decodeRecord(w http.ResponseWriter, r *http.Request) (models.LocalRecord, bool) {
	var rec models.LocalRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "malformed record body", http.StatusBadRequest)
		return models.LocalRecord{}, false
	}
	if rec.ID == "" {
		http.Error(w, "record id is required", http.StatusBadRequest)
		return models.LocalRecord{}, false
	}
	return rec, true
}
