// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for persisted outputs.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogTableOverwrite logs the replacement of an output table.
func (al *AuditLogger) LogTableOverwrite(table string, rows int, columns []string) {
	al.WithFields(logrus.Fields{
		"table":   table,
		"rows":    rows,
		"columns": columns,
	}).Info("Output table overwritten")
}

// LogRunStarted logs the start of a tracked run.
func (al *AuditLogger) LogRunStarted(runID, experiment, runName string) {
	al.WithFields(logrus.Fields{
		"run_id":     runID,
		"experiment": experiment,
		"run_name":   runName,
	}).Info("Run started")
}

// LogRunFinished logs the end of a tracked run.
func (al *AuditLogger) LogRunFinished(runID, status string, duration time.Duration) {
	al.WithFields(logrus.Fields{
		"run_id":   runID,
		"status":   status,
		"duration": duration.String(),
	}).Info("Run finished")
}

// LogArtifactWritten logs a stored run artifact.
func (al *AuditLogger) LogArtifactWritten(runID, name, path string, size int64) {
	al.WithFields(logrus.Fields{
		"run_id": runID,
		"name":   name,
		"path":   path,
		"bytes":  size,
	}).Info("Artifact written")
}
