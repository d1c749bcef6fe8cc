package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StreamHandler serves a live tail of audit Records as Server-Sent
// Events, gated by optional kind/subject/success query filters. Ground:
// the teacher's internal/api/audit_sse_handler.go auditSSEHandler.stream,
// generalized from workspace/tool/status filters to this server's own
// kind/subject/success fields and given a production home — the
// teacher's handler is this package's only exercised Bus.Subscribe call
// site, so this is the operator-facing endpoint that plays the same role
// here.
func StreamHandler(bus *Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		qKind := r.URL.Query().Get("kind")
		qSubject := r.URL.Query().Get("subject")
		qSuccess := r.URL.Query().Get("success")

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case rec, ok := <-ch:
				if !ok {
					return
				}
				if !matchFilter(rec.Kind, qKind) ||
					!matchFilter(rec.Subject, qSubject) ||
					!matchSuccess(rec.Success, qSuccess) {
					continue
				}
				data, err := json.Marshal(rec)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			case <-heartbeat.C:
				fmt.Fprint(w, ":\n\n")
				flusher.Flush()
			}
		}
	}
}

func matchFilter(value, filter string) bool {
	return filter == "" || value == filter
}

func matchSuccess(success bool, filter string) bool {
	if filter == "" {
		return true
	}
	want := filter == "true"
	return success == want
}
