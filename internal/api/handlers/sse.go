package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/core"
)

// streamSSE relays every fragment of s as a server-sent event and closes s.
// A failure after the first byte can only be reported in-band as an error event.
func streamSSE(w http.ResponseWriter, r *http.Request, s core.TokenStream) {
	defer s.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	flush()

	for {
		if r.Context().Err() != nil {
			log.Debug("handlers: client went away, abandoning stream")
			return
		}

		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			fmt.Fprint(w, "event: done\ndata: {}\n\n")
			flush()
			return
		}
		if err != nil {
			log.Warnf("handlers: stream failed: %v", err)
			writeEvent(w, "error", map[string]string{"error": err.Error()})
			flush()
			return
		}

		writeEvent(w, "", map[string]string{"delta": frag})
		flush()
	}
}

func writeEvent(w io.Writer, event string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
