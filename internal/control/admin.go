package control

import (
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/brick-sorter/internal/debounce"
	"github.com/banshee-data/brick-sorter/internal/httputil"
)

// AttachAdminRoutes mounts the sorter's debug pages under /debug/ on mux.
// They are only reachable from localhost or over Tailscale.
func AttachAdminRoutes(mux *http.ServeMux, loop *Loop, states []*debounce.Shared) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Kicks", func() any { return loop.Status().Kicks })
	debug.KVFunc("Kick failures", func() any { return loop.Status().Failures })

	debug.Handle("sorter", "control loop status as JSON", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		httputil.WriteJSONOK(w, loop.Status())
	}))

	debug.Handle("events", "kick events as a websocket stream", eventStream(loop.Events()))

	// ?sensor=s1 narrows the output to one window
	debug.Handle("debounce", "debounce windows of every sensor as JSON", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		name := r.URL.Query().Get("sensor")
		snaps := make([]debounce.WindowSnapshot, 0, len(states))
		for _, s := range states {
			if name == "" || s.Name() == name {
				snaps = append(snaps, s.Snapshot())
			}
		}
		if name != "" && len(snaps) == 0 {
			httputil.NotFound(w, fmt.Sprintf("no sensor %q", name))
			return
		}
		httputil.WriteJSONOK(w, snaps)
	}))
}
