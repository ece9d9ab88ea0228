package client

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/Coffee-Nerd/MudVault-Mesh/internal/config"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/proto"
)

// auditor writes one line per envelope when message logging is on.
// With an audit path configured the lines go to their own JSON file;
// otherwise they ride the main logger at debug level.
type auditor struct {
	enabled bool
	log     zerolog.Logger
	file    *os.File
}

func newAuditor(cfg config.Config, base zerolog.Logger) *auditor {
	a := &auditor{enabled: cfg.LogAllMessages}
	if !a.enabled {
		return a
	}
	if cfg.AuditLogPath != "" {
		f, err := os.OpenFile(cfg.AuditLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			base.Warn().Err(err).Str("path", cfg.AuditLogPath).
				Msg("audit log unavailable, falling back to main log")
		} else {
			a.file = f
			a.log = zerolog.New(f).With().Timestamp().Logger()
			return a
		}
	}
	a.log = base
	return a
}

func (a *auditor) Record(direction string, kind proto.Kind, from, to, id string) {
	if !a.enabled {
		return
	}
	event := a.log.Debug()
	if a.file != nil {
		event = a.log.Info()
	}
	event.Str("dir", direction).Str("kind", string(kind)).
		Str("from", from).Str("to", to).Str("id", id).Msg("envelope")
}

func (a *auditor) Close() {
	if a.file != nil {
		_ = a.file.Close()
		a.file = nil
	}
}
