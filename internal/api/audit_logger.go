package api

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditLogger writes one line per match mutation. Secret values are never
// passed to it before the reveal, and details under secret keys are
// redacted regardless.
type AuditLogger struct {
	logger *log.Logger
}

// NewAuditLogger creates an audit logger writing to stdout
func NewAuditLogger() *AuditLogger {
	return NewAuditLoggerTo(os.Stdout)
}

// NewAuditLoggerTo creates an audit logger writing to w
func NewAuditLoggerTo(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: log.New(w, "[AUDIT] ", log.LstdFlags|log.LUTC),
	}
}

// LogMatchAction records a single engine operation against a live match.
func (al *AuditLogger) LogMatchAction(
	requestID string,
	matchID uuid.UUID,
	action string,
	side string,
	outcome string,
	details map[string]interface{},
) {
	if side == "" {
		side = "-"
	}
	al.logger.Printf(
		"match_action request_id=%s match_id=%s action=%s side=%s outcome=%s details=%s engine_version=%s timestamp=%s",
		requestID,
		matchID,
		action,
		side,
		outcome,
		formatDetails(details),
		EngineVersion,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// LogValidationFailure records a rejected request.
func (al *AuditLogger) LogValidationFailure(requestID, field, message, path, remoteAddr string) {
	al.logger.Printf(
		"validation_failure request_id=%s field=%s message=%q path=%s remote_addr=%s",
		requestID, field, message, path, remoteAddr,
	)
}

// LogSystemStartup records the server configuration at boot.
func (al *AuditLogger) LogSystemStartup(details map[string]interface{}) {
	al.logger.Printf(
		"system_startup details=%s engine_version=%s git_commit=%s timestamp=%s",
		formatDetails(details),
		EngineVersion,
		GitCommit,
		time.Now().UTC().Format(time.RFC3339),
	)
}

var secretDetailKeys = map[string]bool{
	"value":          true,
	"tac_op_choice":  true,
	"primary_choice": true,
}

// formatDetails renders details as sorted key=value pairs.
func formatDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := details[k]
		if secretDetailKeys[k] {
			v = "[REDACTED]"
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
