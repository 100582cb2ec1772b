package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/cdapd/internal/logger"
	"github.com/marmos91/cdapd/pkg/cdap"
	"github.com/marmos91/cdapd/pkg/rib"
)

// SessionInfo is the wire form of one session's introspection snapshot.
type SessionInfo struct {
	PortID      int    `json:"port_id"`
	State       string `json:"state"`
	Version     int64  `json:"version,omitempty"`
	SrcAPName   string `json:"src_ap_name,omitempty"`
	SrcAEName   string `json:"src_ae_name,omitempty"`
	DestAPName  string `json:"dest_ap_name,omitempty"`
	DestAEName  string `json:"dest_ae_name,omitempty"`
	PendingSent int    `json:"pending_sent"`
	PendingRecv int    `json:"pending_recv"`
	CancelReads int    `json:"cancel_reads"`
}

// RIBInfo is the wire form of one RIB's introspection snapshot.
type RIBInfo struct {
	Handle  int64  `json:"handle"`
	Version int64  `json:"version"`
	AEName  string `json:"ae_name,omitempty"`
	Objects int    `json:"objects"`
}

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /api/v1/sessions - CDAP session listing
//   - GET /api/v1/ribs - RIB listing
//   - GET /api/v1/ribs/{handle}/objects - Object listing of one RIB
func NewRouter(mgr *cdap.SessionManager, daemon *rib.Daemon, instanceID string) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		OK(w, map[string]any{
			"instance": instanceID,
			"sessions": mgr.SessionCount(),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions", func(w http.ResponseWriter, _ *http.Request) {
			OK(w, listSessions(mgr))
		})

		r.Get("/ribs", func(w http.ResponseWriter, _ *http.Request) {
			out := make([]RIBInfo, 0)
			for _, rb := range daemon.RIBs() {
				out = append(out, RIBInfo{
					Handle:  rb.Handle(),
					Version: rb.Version(),
					AEName:  rb.AEName(),
					Objects: rb.ObjectCount(),
				})
			}
			OK(w, out)
		})

		r.Get("/ribs/{handle}/objects", func(w http.ResponseWriter, req *http.Request) {
			handle, err := strconv.ParseInt(chi.URLParam(req, "handle"), 10, 64)
			if err != nil {
				Err(w, http.StatusBadRequest, "invalid RIB handle")
				return
			}
			rb, err := daemon.GetRIBByHandle(handle)
			if err != nil {
				Err(w, http.StatusNotFound, err.Error())
				return
			}
			OK(w, rb.Objects())
		})
	})

	return r
}

func listSessions(mgr *cdap.SessionManager) []SessionInfo {
	out := make([]SessionInfo, 0)
	for _, portID := range mgr.PortIDs() {
		s, ok := mgr.GetSession(portID)
		if !ok {
			continue
		}
		h := s.Handle()
		sent, recv, cancel := s.PendingCounts()
		out = append(out, SessionInfo{
			PortID:      portID,
			State:       s.State().String(),
			Version:     h.Version,
			SrcAPName:   h.Src.APName,
			SrcAEName:   h.Src.AEName,
			DestAPName:  h.Dest.APName,
			DestAEName:  h.Dest.AEName,
			PendingSent: sent,
			PendingRecv: recv,
			CancelReads: cancel,
		})
	}
	return out
}

// requestLogger logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("API request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			logger.KeyDurationMs, logger.Duration(start))
	})
}
