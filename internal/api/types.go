package api

import (
	"github.com/mattjoyce/hookd/internal/host"
	"github.com/mattjoyce/hookd/internal/journal"
)

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Hooks         int    `json:"hooks"`
	Libraries     int    `json:"libraries"`
}

// HooksResponse is returned by GET /hooks.
type HooksResponse struct {
	Libraries []string        `json:"libraries"`
	Hooks     []host.HookInfo `json:"hooks"`
}

// DispatchesResponse is returned by GET /dispatches.
type DispatchesResponse struct {
	Dispatches []journal.Entry `json:"dispatches"`
}
