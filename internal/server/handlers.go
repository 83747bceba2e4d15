package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/scrypster/mneme/internal/backup"
	"github.com/scrypster/mneme/internal/engine"
	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

// maxBodyBytes bounds request bodies; snapshot imports are the largest.
const maxBodyBytes = 32 << 20

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// QueueRequest is the body of POST /api/queue.
type QueueRequest struct {
	Content string              `json:"content"`
	Type    types.QueueItemType `json:"type"`
}

// QueueResponse is the body of GET /api/queue.
type QueueResponse struct {
	Items []*types.QueueItem `json:"items"`
	Stats engine.QueueStats  `json:"stats"`
}

// ConsultRequest is the body of POST /api/consult.
type ConsultRequest struct {
	Message  string             `json:"message"`
	History  []string           `json:"history"`
	Observer bool               `json:"observer"`
	Status   types.SystemStatus `json:"status"`
}

// EvaluateRequest is the body of POST /api/evaluate.
type EvaluateRequest struct {
	Input string `json:"input"`
}

// MemoryRequest is the body of POST /api/memories.
type MemoryRequest struct {
	Content        string                 `json:"content"`
	Domain         types.Domain           `json:"domain"`
	Type           types.MemoryType       `json:"type"`
	Entity         string                 `json:"entity"`
	Speaker        types.Speaker          `json:"speaker"`
	Confidence     float64                `json:"confidence"`
	Salience       float64                `json:"salience"`
	TrustScore     float64                `json:"trust_score"`
	RecallPriority types.RecallPriority   `json:"recall_priority"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// MemoryPatchRequest is the body of PATCH /api/memories/{id}. Omitted
// fields are left unchanged.
type MemoryPatchRequest struct {
	Content           *string               `json:"content,omitempty"`
	Status            *types.MemoryStatus   `json:"status,omitempty"`
	RecallPriority    *types.RecallPriority `json:"recall_priority,omitempty"`
	Salience          *float64              `json:"salience,omitempty"`
	IsPinned          *bool                 `json:"is_pinned,omitempty"`
	IsLocked          *bool                 `json:"is_locked,omitempty"`
	IsPendingApproval *bool                 `json:"is_pending_approval,omitempty"`
}

// MemoryListResponse is the body of GET /api/memories.
type MemoryListResponse struct {
	Memories []*types.Memory `json:"memories"`
	Total    int             `json:"total"`
}

// BootResponse is the body of GET /api/boot.
type BootResponse struct {
	Warnings        []string           `json:"warnings"`
	Durable         bool               `json:"durable"`
	Status          types.SystemStatus `json:"status"`
	Queue           engine.QueueStats  `json:"queue"`
	LastMaintenance *time.Time         `json:"last_maintenance,omitempty"`
}

// NotesImportRequest is the body of POST /api/import/notes.
type NotesImportRequest struct {
	Path string `json:"path"`
}

// ResetRequest is the body of POST /api/reset.
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"durable": s.engine.Durable(),
	})
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListQueue(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	stats, err := s.engine.QueueStats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, QueueResponse{Items: items, Stats: stats})
}

func (s *Server) addToQueue(w http.ResponseWriter, r *http.Request) {
	var req QueueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.engine.AddToQueue(r.Context(), req.Content, req.Type)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, item)
}

func (s *Server) consult(w http.ResponseWriter, r *http.Request) {
	var req ConsultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Status {
	case "", types.SystemNominal, types.SystemDegraded, types.SystemSafeMode:
	default:
		respondError(w, http.StatusBadRequest, "invalid status", nil)
		return
	}
	reply, err := s.engine.ConsultBrain(r.Context(), req.History, req.Message, req.Observer, req.Status)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	eval, err := s.engine.EvaluateUpdate(r.Context(), req.Input)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, eval)
}

// listMemories handles GET /api/memories with optional status, domain and
// limit filters. Results are newest first.
func (s *Server) listMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := types.MemoryStatus(q.Get("status"))
	domain := types.Domain(q.Get("domain"))
	if status != "" && !types.IsValidStatus(status) {
		respondError(w, http.StatusBadRequest, "invalid status", nil)
		return
	}
	if domain != "" && !types.IsValidDomain(domain) {
		respondError(w, http.StatusBadRequest, "invalid domain", nil)
		return
	}
	limit := parseInt(q.Get("limit"), 100)
	if limit > 1000 {
		limit = 1000
	}

	all, err := s.engine.Records().Memories.All(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	out := make([]*types.Memory, 0, len(all))
	for _, m := range all {
		if status != "" && m.Status != status {
			continue
		}
		if domain != "" && m.Domain != domain {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	total := len(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	respondJSON(w, http.StatusOK, MemoryListResponse{Memories: out, Total: total})
}

func (s *Server) createMemory(w http.ResponseWriter, r *http.Request) {
	var req MemoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Domain != "" && !types.IsValidDomain(req.Domain) {
		respondError(w, http.StatusBadRequest, "invalid domain", nil)
		return
	}
	if req.Type != "" && !types.IsValidMemoryType(req.Type) {
		respondError(w, http.StatusBadRequest, "invalid memory type", nil)
		return
	}

	m, err := s.engine.Remember(r.Context(), types.MemoryInput{
		Content:        req.Content,
		Domain:         req.Domain,
		Type:           req.Type,
		Entity:         req.Entity,
		Speaker:        req.Speaker,
		Confidence:     req.Confidence,
		Salience:       req.Salience,
		TrustScore:     req.TrustScore,
		RecallPriority: req.RecallPriority,
		Metadata:       req.Metadata,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Records().Memories.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) updateMemory(w http.ResponseWriter, r *http.Request) {
	var req MemoryPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status != nil && !types.IsValidStatus(*req.Status) {
		respondError(w, http.StatusBadRequest, "invalid status", nil)
		return
	}
	if req.RecallPriority != nil {
		switch *req.RecallPriority {
		case types.PriorityHigh, types.PriorityNormal, types.PriorityLow:
		default:
			respondError(w, http.StatusBadRequest, "invalid recall priority", nil)
			return
		}
	}

	m, err := s.engine.UpdateMemory(r.Context(), r.PathValue("id"), engine.MemoryPatch{
		Content:           req.Content,
		Status:            req.Status,
		RecallPriority:    req.RecallPriority,
		Salience:          req.Salience,
		IsPinned:          req.IsPinned,
		IsLocked:          req.IsLocked,
		IsPendingApproval: req.IsPendingApproval,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) deleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Forget(r.Context(), r.PathValue("id")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) boot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := BootResponse{
		Warnings: s.engine.RunSystemBootCheck(ctx),
		Durable:  s.engine.Durable(),
		Status:   s.engine.Status(),
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if stats, err := s.engine.QueueStats(ctx); err == nil {
		resp.Queue = stats
	}
	if last := s.engine.LastMaintenance(ctx); !last.IsZero() {
		resp.LastMaintenance = &last
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	snap, err := backup.Export(r.Context(), s.engine.Records())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="mneme-export-%s.json"`, snap.ExportedAt.Format("20060102-150405")))
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) importSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "snapshot too large", err)
		return
	}
	snap, err := backup.Decode(data)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if err := backup.Import(r.Context(), s.engine.Records(), snap); err != nil {
		respondStoreError(w, err)
		return
	}
	s.engine.StoreReplaced(r.Context(), notify.EventStoreImported)
	log.Printf("Store imported: %d memories", len(snap.Memories))
	respondJSON(w, http.StatusOK, map[string]int{"memories": len(snap.Memories)})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Confirm {
		respondError(w, http.StatusBadRequest, "reset requires confirm=true", nil)
		return
	}
	if err := backup.FactoryReset(r.Context(), s.engine.Records()); err != nil {
		respondStoreError(w, err)
		return
	}
	s.engine.StoreReplaced(r.Context(), notify.EventStoreReset)
	log.Println("WARNING: Store reset to factory state")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) importNotes(w http.ResponseWriter, r *http.Request) {
	var req NotesImportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required", nil)
		return
	}
	// the job outlives the request
	id, err := s.notes.Start(context.WithoutCancel(r.Context()), req.Path)
	if err != nil {
		respondError(w, http.StatusBadRequest, "cannot import notes", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) importNotesStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := s.notes.Progress(r.PathValue("job_id"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown import job", nil)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) listBackups(w http.ResponseWriter, r *http.Request) {
	list, err := s.backups.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list backups", err)
		return
	}
	if list == nil {
		list = []backup.Info{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) backupNow(w http.ResponseWriter, r *http.Request) {
	res, err := s.backups.BackupNow(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "backup failed", err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// decodeBody decodes a JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// parseInt parses s as an integer, returning defaultValue on failure.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultValue
	}
	return v
}

// respondStoreError maps engine and storage errors to status codes.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid input", err)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found", nil)
	case errors.Is(err, storage.ErrLocked):
		respondError(w, http.StatusConflict, "memory is locked", err)
	case errors.Is(err, engine.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "enqueue rate limit exceeded", nil)
	case errors.Is(err, engine.ErrSafeMode), errors.Is(err, storage.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		log.Printf("ERROR: request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// respondJSON writes data as JSON with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("WARNING: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
