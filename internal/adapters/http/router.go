package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tenantic/assistant-core/internal/core/domain"
	"github.com/tenantic/assistant-core/internal/core/ports"
	"github.com/tenantic/assistant-core/internal/observability/metrics"
)

type RouterConfig struct {
	ServiceName    string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	MaxUploadBytes int64
	RetrievalTopK  int

	// Logger receives access-log records. Defaults to slog.Default().
	Logger *slog.Logger
}

type Router struct {
	cfg       RouterConfig
	ingestor  ports.DocumentIngestor
	documents ports.DocumentStore
	agents    ports.AgentStore
	retriever ports.ContextRetriever
	chat      ports.ChatService
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg RouterConfig,
	ingestor ports.DocumentIngestor,
	documents ports.DocumentStore,
	agents ports.AgentStore,
	retriever ports.ContextRetriever,
	chat ports.ChatService,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{
		cfg:       cfg,
		ingestor:  ingestor,
		documents: documents,
		agents:    agents,
		retriever: retriever,
		chat:      chat,
		metrics:   serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentSubtree)
	mux.HandleFunc("/v1/chat", rt.chatTurn)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, 100*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	handler = accessLogMiddleware(rt.cfg.Logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	collectionID := strings.TrimSpace(r.FormValue("collection_id"))
	if collectionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field 'collection_id' is required"})
		return
	}

	doc, err := rt.ingestor.Upload(
		r.Context(),
		collectionID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) documentSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if rest == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	if id, ok := strings.CutSuffix(rest, "/reprocess"); ok {
		rt.reprocessDocument(w, r, strings.TrimSuffix(id, "/"))
		return
	}
	rt.getDocumentByID(w, r, rest)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'tenant_id' is required"})
		return
	}

	doc, err := rt.documents.GetByIDForTenant(r.Context(), tenantID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'tenant_id' is required"})
		return
	}

	// Ownership check before republishing; the queue side works by id alone.
	if _, err := rt.documents.GetByIDForTenant(r.Context(), tenantID, id); err != nil {
		writeError(w, err)
		return
	}

	if err := rt.ingestor.Reprocess(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	doc, err := rt.documents.GetByIDForTenant(r.Context(), tenantID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		TenantID       string `json:"tenant_id"`
		UserID         string `json:"user_id"`
		AgentID        string `json:"agent_id"`
		ConversationID string `json:"conversation_id"`
		Message        string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.chat.Chat(r.Context(), domain.ChatRequest{
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		decision := string(domain.DecisionAllowed)
		if result.Blocked {
			decision = string(domain.DecisionBlocked)
		}
		rt.metrics.RecordDecision(rt.cfg.ServiceName, decision, result.BlockReason)
		rt.metrics.RecordTokenUsage(rt.cfg.ServiceName, "", result.TokensUsed)
		rt.metrics.RecordSpend(rt.cfg.ServiceName, result.Cost)
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		TenantID string `json:"tenant_id"`
		AgentID  string `json:"agent_id"`
		Query    string `json:"query"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "agent_id is required"})
		return
	}

	agent, err := rt.agents.GetByID(r.Context(), req.TenantID, req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = rt.cfg.RetrievalTopK
	}

	start := time.Now()
	result, err := rt.retriever.Retrieve(r.Context(), req.Query, agent, topK)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(rt.cfg.ServiceName, len(result.Evidence), time.Since(start))
	}

	writeJSON(w, http.StatusOK, result)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
