// Package recentconns keeps track of the most recent connection attempts.
package recentconns

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/plugin"
)

// Name is the name of the plugin.
const Name = "RecentConns"

// DefaultLimit is the default number of recent connections kept.
const DefaultLimit = 6

// RecentConns records connection attempts, most recent first.
type RecentConns struct {
	limit  int
	items  []bluetooth.Target
	logger zerolog.Logger

	mu sync.Mutex
}

// New returns a new recent connections tracker, which keeps at most limit entries.
func New(limit int, logger zerolog.Logger) *RecentConns {
	if limit <= 0 {
		limit = DefaultLimit
	}

	return &RecentConns{
		limit:  limit,
		logger: logger.With().Str("plugin", Name).Logger(),
	}
}

// Name returns the name of the plugin.
func (r *RecentConns) Name() string { return Name }

// Description returns a short description of the plugin.
func (r *RecentConns) Description() string {
	return "Keeps track of recently connected devices and services"
}

// Load does nothing, the tracker is notified directly.
func (r *RecentConns) Load(*plugin.Registry) error { return nil }

// Unload clears the recorded connections.
func (r *RecentConns) Unload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = nil

	return nil
}

// Notify records a connection attempt to the device at path, or to one of its services.
func (r *RecentConns) Notify(path string, id uuid.UUID) {
	target := bluetooth.Target{Path: path, UUID: id}

	r.mu.Lock()
	r.items = slices.DeleteFunc(r.items, func(t bluetooth.Target) bool { return t == target })
	r.items = slices.Insert(r.items, 0, target)
	if len(r.items) > r.limit {
		r.items = slices.Clip(r.items[:r.limit])
	}
	r.mu.Unlock()

	r.logger.Debug().Str("path", path).Str("uuid", id.String()).Msg("Connection recorded")
	bluetooth.RecentConnectionEvents().PublishAdded(bluetooth.RecentConnectionData{Target: target})
}

