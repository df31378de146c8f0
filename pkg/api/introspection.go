package api

import (
	"time"

	"github.com/aretw0/introspection"
)

// ServerState exposes server settings and session counts.
type ServerState struct {
	Addr           string        `json:"addr,omitempty"`
	Sessions       int           `json:"sessions"`
	SessionTTL     time.Duration `json:"session_ttl"`
	PageSize       int           `json:"page_size"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

// State implements introspection.Introspectable.
func (s *Server) State() any {
	return ServerState{
		Addr:           s.addr,
		Sessions:       s.sessions.Len(),
		SessionTTL:     s.sessions.TTL(),
		PageSize:       s.pageSize,
		AllowedOrigins: s.origins,
	}
}

// ComponentType implements introspection.Component.
func (s *Server) ComponentType() string {
	return "http-server"
}

var _ introspection.Introspectable = (*Server)(nil)
var _ introspection.Component = (*Server)(nil)
