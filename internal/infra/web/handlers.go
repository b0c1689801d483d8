package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/model"
	"delta-backend/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeDomainError maps domain sentinels onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeDetail(w, http.StatusBadRequest, "Invalid request")
	case errors.Is(err, domain.ErrForbidden):
		writeDetail(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, domain.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeDetail(w, http.StatusConflict, "Already exists")
	case errors.Is(err, domain.ErrEmptyConversation):
		writeDetail(w, http.StatusNotFound, "Conversation not found or empty")
	case errors.Is(err, domain.ErrUnavailable):
		writeDetail(w, http.StatusServiceUnavailable, "Service unavailable")
	default:
		writeDetail(w, http.StatusInternalServerError, "Internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// ===== users =====

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.userUC == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Accounts unavailable")
		return
	}
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.userUC.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":       user.ID,
		"username": user.Username,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.userUC == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Accounts unavailable")
		return
	}
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.userUC.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		// A wrong password and an unknown user look the same to the caller.
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, err := s.auth.Mint(user.ID, user.Username)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to mint token")
		writeDetail(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// ===== conversations =====

type createConversationRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	conv, err := s.chatUC.StartConversation(r.Context(), userIDFrom(r.Context()), req.Title)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    conv.ID,
		"title": conv.Title,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.chatUC.ListConversations(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	type convOut struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Summary string `json:"summary,omitempty"`
	}
	out := make([]convOut, 0, len(convs))
	for _, c := range convs {
		out = append(out, convOut{ID: c.ID, Title: c.Title, Summary: c.Summary})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "conversationID")
	msgs, err := s.chatUC.ListMessages(r.Context(), userIDFrom(r.Context()), convID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	type msgOut struct {
		Index   int    `json:"index"`
		Sender  string `json:"sender"`
		Content string `json:"content"`
	}
	out := make([]msgOut, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, msgOut{Index: m.Index, Sender: m.Sender, Content: m.Content})
	}
	writeJSON(w, http.StatusOK, out)
}

// ===== chat =====

type processRequest struct {
	ConversationID string `json:"conversation_id"`
	UserInput      string `json:"user_input"`
	Role           string `json:"role"`
}

func (r processRequest) role() usecase.Role {
	if r.Role == string(usecase.RoleEducationalGuide) {
		return usecase.RoleEducationalGuide
	}
	return usecase.RoleDelta
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeBody(w, r, &req) {
		return
	}
	answer, err := s.chatUC.ProcessUserInput(r.Context(), userIDFrom(r.Context()), req.ConversationID, req.UserInput, req.role())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"llmResponse": answer})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "conversationID")
	summary, err := s.chatUC.Summary(r.Context(), userIDFrom(r.Context()), convID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// ===== jobs =====

type createJobRequest struct {
	Model   string `json:"model"`
	Domain  string `json:"domain"`
	JobType string `json:"job_type"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !decodeBody(w, r, &req) {
		return
	}
	job, err := s.jobUC.Create(r.Context(), usecase.CreateJobParams{
		Type:   model.JobType(req.JobType),
		Model:  req.Model,
		Domain: req.Domain,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view := jobView(job)
	view["message"] = "Job submitted for background execution."
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobUC.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobView(job))
}

func (s *Server) handleListPendingJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobUC.Pending(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobView(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobUC.Cancel(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobView(job))
}

func jobView(j *model.Job) map[string]any {
	return map[string]any{
		"id":         j.ID,
		"type":       j.Type,
		"status":     j.Status,
		"parameters": j.Parameters,
		"result":     j.Result,
		"logs":       j.Logs,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
}

// ===== media =====

type ttsRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Text-to-speech not configured")
		return
	}
	var req ttsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeDetail(w, http.StatusBadRequest, "No text provided")
		return
	}
	audio, err := s.tts.Synthesize(r.Context(), req.Text)
	if err != nil {
		s.log.Error().Err(err).Msg("tts synthesis failed")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"audioContent": audio})
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	if s.image == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Image generation not configured")
		return
	}
	var req imageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	uri, err := s.image.GenerateDataURI(r.Context(), req.Prompt)
	if err != nil {
		s.log.Error().Err(err).Msg("image generation failed")
		writeDetail(w, http.StatusInternalServerError, "Image generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image_url": uri})
}
