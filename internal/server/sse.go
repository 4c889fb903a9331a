package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"atlas/internal/domain"
)

// registerStream exposes the live task timeline as Server-Sent Events.
// Registered on the router directly; streaming bodies do not fit the
// request/response codec.
func (s *handlers) registerStream(router chi.Router, basePath string) {
	router.Get(path.Join(basePath, "/tasks/{id}/history/stream"), func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "streaming unsupported"))
			return
		}
		me, authErr := s.currentProfile(r.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}

		viewer := s.engine.NewViewer()
		defer viewer.Close()
		backlog, ch, err := viewer.Open(r.Context(), me.Profile, chi.URLParam(r, "id"))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		for _, entry := range backlog {
			writeEvent(w, entry.HistoryEntry)
		}
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case entry, open := <-ch:
				if !open {
					return
				}
				writeEvent(w, entry)
				flusher.Flush()
			}
		}
	})
}

func writeEvent(w http.ResponseWriter, e domain.HistoryEntry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: history\ndata: %s\n\n", data)
}
