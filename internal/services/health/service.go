package health

import (
	"context"
	"os"
	"time"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports whether the data root is readable and, when configured, whether
// the history database answers.
type Service struct {
	DataRoot string
	DB       Pinger
}

// NewService constructs a health service. db may be nil.
func NewService(dataRoot string, db Pinger) *Service {
	return &Service{DataRoot: dataRoot, DB: db}
}

// Status is the health payload.
type Status struct {
	OK       bool   `json:"ok"`
	DataRoot string `json:"data_root"`
	Database string `json:"database"`
}

// Check probes each dependency. Database is "memory" when no database is configured.
func (s *Service) Check(ctx context.Context) Status {
	st := Status{OK: true, DataRoot: "ok", Database: "memory"}
	if info, err := os.Stat(s.DataRoot); err != nil || !info.IsDir() {
		st.OK = false
		st.DataRoot = "unreadable"
	}
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			st.OK = false
			st.Database = "unreachable"
		} else {
			st.Database = "ok"
		}
	}
	return st
}
