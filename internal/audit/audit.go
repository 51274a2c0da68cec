package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OperationType represents the type of operation performed
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
	OperationRead   OperationType = "READ"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceSchedule        ResourceType = "reminder_schedule"
	ResourceReminder        ResourceType = "reminder"
	ResourceMedicationEvent ResourceType = "medication_event"
	ResourceAssignment      ResourceType = "medication_assignment"
	ResourceContact         ResourceType = "patient_contact"
	ResourcePatientData     ResourceType = "patient_data"
	ResourceReport          ResourceType = "adherence_report"
)

// SystemActor identifies changes made by the service itself (dispatcher, webhooks)
const SystemActor = "system"

// Actor identifies who performed an operation and from where
type Actor struct {
	ID        string
	IPAddress string
	UserAgent string
}

// System returns the actor used for background and webhook-driven changes
func System() Actor {
	return Actor{ID: SystemActor}
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID             string
	ActorID        string
	OperationType  OperationType
	ResourceType   ResourceType
	ResourceID     string
	Timestamp      time.Time
	IPAddress      string
	UserAgent      string
	AdditionalData map[string]interface{}
}

// Logger handles audit logging
type Logger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLogger creates a new audit logger
func NewLogger(db *pgxpool.Pool, logger *zap.Logger) *Logger {
	return &Logger{
		db:     db,
		logger: logger,
	}
}

// Log creates an audit log entry
func (l *Logger) Log(ctx context.Context, entry AuditLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.logger.Info("Audit log entry",
		zap.String("actor_id", entry.ActorID),
		zap.String("operation", string(entry.OperationType)),
		zap.String("resource_type", string(entry.ResourceType)),
		zap.String("resource_id", entry.ResourceID),
		zap.Time("timestamp", entry.Timestamp),
		zap.String("ip_address", entry.IPAddress),
	)

	query := `
		INSERT INTO audit_logs (
			actor_id, operation_type, resource_type, resource_id,
			timestamp, ip_address, user_agent, additional_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := l.db.Exec(ctx, query,
		entry.ActorID,
		entry.OperationType,
		entry.ResourceType,
		entry.ResourceID,
		entry.Timestamp,
		entry.IPAddress,
		entry.UserAgent,
		entry.AdditionalData,
	)

	if err != nil {
		l.logger.Error("Failed to write audit log to database",
			zap.Error(err),
			zap.String("actor_id", entry.ActorID),
			zap.String("operation", string(entry.OperationType)),
			zap.String("resource_type", string(entry.ResourceType)),
		)
		return err
	}

	return nil
}

// Record builds an entry for actor and writes it
func (l *Logger) Record(ctx context.Context, actor Actor, op OperationType, resource ResourceType, resourceID string, details map[string]interface{}) error {
	return l.Log(ctx, AuditLog{
		ActorID:        actor.ID,
		OperationType:  op,
		ResourceType:   resource,
		ResourceID:     resourceID,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
		AdditionalData: details,
	})
}

// ListByActor retrieves the most recent audit entries of an actor
func (l *Logger) ListByActor(ctx context.Context, actorID string, limit int) ([]AuditLog, error) {
	query := `
		SELECT id, actor_id, operation_type, resource_type, resource_id,
		       timestamp, COALESCE(ip_address, ''), COALESCE(user_agent, '')
		FROM audit_logs
		WHERE actor_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := l.db.Query(ctx, query, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		err := rows.Scan(
			&log.ID,
			&log.ActorID,
			&log.OperationType,
			&log.ResourceType,
			&log.ResourceID,
			&log.Timestamp,
			&log.IPAddress,
			&log.UserAgent,
		)
		if err != nil {
			l.logger.Error("Failed to scan audit log", zap.Error(err))
			continue
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
