package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
	"butterfly/internal/remote"
	"butterfly/internal/repository"
)

// Handler serves the catalog over HTTP in the remote wire format
type Handler struct {
	svc      *Service
	validate *validator.Validate
	log      *zap.SugaredLogger
}

// NewHandler creates a catalog handler
func NewHandler(svc *Service, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, validate: validator.New(), log: log}
}

// Register mounts the catalog routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /catalog/related", h.Related)
	mux.HandleFunc("GET /catalog/articles/{key...}", h.Article)
	mux.HandleFunc("GET /catalog/random", h.Random)
}

// Related answers a related-articles request
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	var req remote.RelatedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeEnvelope(w, remote.Envelope{Message: "invalid request body"}, http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeEnvelope(w, remote.Envelope{Message: err.Error()}, http.StatusBadRequest)
		return
	}

	res, err := h.svc.Related(r.Context(), req.ExternalKey, req.Direction)
	if err != nil {
		h.fail(w, err)
		return
	}
	if res.IsEmpty() {
		writeEnvelope(w, remote.Envelope{Status: remote.StatusEmpty}, http.StatusOK)
		return
	}
	writeEnvelope(w, successEnvelope(res.Items...), http.StatusOK)
}

// Article returns a single seed record
func (h *Handler) Article(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeEnvelope(w, remote.Envelope{Message: "article key is required"}, http.StatusBadRequest)
		return
	}
	item, err := h.svc.Article(r.Context(), key)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeEnvelope(w, successEnvelope(item), http.StatusOK)
}

// Random returns seed suggestions
func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year")
	if err != nil {
		writeEnvelope(w, remote.Envelope{Message: err.Error()}, http.StatusBadRequest)
		return
	}
	n, err := intParam(r, "n")
	if err != nil {
		writeEnvelope(w, remote.Envelope{Message: err.Error()}, http.StatusBadRequest)
		return
	}

	suggestions, err := h.svc.Random(r.Context(), year, n)
	if err != nil {
		h.fail(w, err)
		return
	}
	if len(suggestions) == 0 {
		writeEnvelope(w, remote.Envelope{Status: remote.StatusEmpty}, http.StatusOK)
		return
	}
	env := remote.Envelope{Status: remote.StatusSuccess}
	for _, s := range suggestions {
		env.Data = append(env.Data, remote.Article{
			Version:     domain.DisplayFieldsVersion,
			ExternalKey: s.ExternalKey,
			Headline:    s.Headline,
			Date:        s.Date,
		})
	}
	writeEnvelope(w, env, http.StatusOK)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeEnvelope(w, remote.Envelope{Status: remote.StatusEmpty, Message: err.Error()}, http.StatusNotFound)
		return
	}
	h.log.Errorw("Catalog request failed", "error", err)
	writeEnvelope(w, remote.Envelope{Message: "internal error"}, http.StatusInternalServerError)
}

func successEnvelope(items ...domain.Item) remote.Envelope {
	env := remote.Envelope{Status: remote.StatusSuccess, Data: make([]remote.Article, 0, len(items))}
	for _, it := range items {
		env.Data = append(env.Data, remote.ArticleFromItem(it))
	}
	return env
}

func writeEnvelope(w http.ResponseWriter, env remote.Envelope, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		zap.S().Warnw("Failed to encode JSON", "error", err)
	}
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.Newf("invalid %s %q", name, raw)
	}
	return v, nil
}
