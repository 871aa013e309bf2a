package handler

import (
	dctx "context"
	"log/slog"
	"net/http"
	"time"

	"github.com/trustbond/api/internal/errHandler"
	"github.com/trustbond/api/internal/response"
	"github.com/trustbond/api/internal/version"
)

const dependencyPingTimeout = 2 * time.Second

// Pinger is a backing service the health check can reach.
type Pinger interface {
	Ping(ctx dctx.Context) error
}

type HealthCheckHandler struct {
	Mode         string
	ChainID      int64
	Dependencies map[string]Pinger
	Logger       *slog.Logger
	ErrHandler   *errHandler.ErrorHandler
}

func NewHealthCheckHandler(handler *HealthCheckHandler) *HealthCheckHandler {
	return &HealthCheckHandler{
		Mode:         handler.Mode,
		ChainID:      handler.ChainID,
		Dependencies: handler.Dependencies,
		Logger:       handler.Logger,
		ErrHandler:   handler.ErrHandler,
	}
}

// HandleHealthCheck reports 503 when any backing service fails its ping.
func (h *HealthCheckHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := dctx.WithTimeout(r.Context(), dependencyPingTimeout)
	defer cancel()

	available := true
	dependencies := make(map[string]string, len(h.Dependencies))

	for name, dependency := range h.Dependencies {
		if err := dependency.Ping(ctx); err != nil {
			h.Logger.Warn("health check failed", "dependency", name, "error", err)
			dependencies[name] = "down"
			available = false
			continue
		}
		dependencies[name] = "up"
	}

	data := map[string]any{
		"status":       "available",
		"mode":         h.Mode,
		"chain_id":     h.ChainID,
		"version":      version.Get(),
		"dependencies": dependencies,
	}

	if !available {
		data["status"] = "unavailable"

		err := response.JSONErrorResponse(w, data, "One or more dependencies are unavailable", http.StatusServiceUnavailable, nil)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
		}
		return
	}

	err := response.JSONOkResponse(w, data, "Up and grateful", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
