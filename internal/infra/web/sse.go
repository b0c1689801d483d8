package web

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleProcessStream emits the generation as server-sent events. Each
// fragment is JSON-encoded on its own data line; the stream always ends with
// a [DONE] sentinel so clients can distinguish completion from a dropped
// connection.
func (s *Server) handleProcessStream(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeBody(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	chunks, err := s.chatUC.ProcessUserInputStream(r.Context(), userIDFrom(r.Context()), req.ConversationID, req.UserInput, req.role())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range chunks {
		if chunk.Err != nil {
			writeSSE(w, flusher, map[string]string{"error": chunk.Err.Error()})
			break
		}
		if chunk.Text == "" {
			continue
		}
		writeSSE(w, flusher, chunk.Text)
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
