package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// ContactRepository manages patient delivery addresses
type ContactRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewContactRepository creates a new ContactRepository
func NewContactRepository(db *pgxpool.Pool, logger *zap.Logger) *ContactRepository {
	return &ContactRepository{
		db:     db,
		logger: logger,
	}
}

const contactColumns = `patient_id, name, phone, whatsapp, email, push_token, updated_at`

func scanContact(row pgx.Row) (*model.PatientContact, error) {
	var c model.PatientContact
	err := row.Scan(
		&c.PatientID,
		&c.Name,
		&c.Phone,
		&c.WhatsApp,
		&c.Email,
		&c.PushToken,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByPatientID retrieves the contact of a patient
func (r *ContactRepository) FindByPatientID(ctx context.Context, patientID string) (*model.PatientContact, error) {
	query := `SELECT ` + contactColumns + ` FROM patient_contacts WHERE patient_id = $1`

	c, err := scanContact(r.db.QueryRow(ctx, query, patientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("patient contact", patientID)
		}
		r.logger.Error("failed to find patient contact", zap.Error(err), zap.String("patient_id", patientID))
		return nil, fmt.Errorf("failed to find patient contact: %w", err)
	}

	return c, nil
}

// FindByAddress resolves an inbound sender (phone or WhatsApp number) to a patient contact
func (r *ContactRepository) FindByAddress(ctx context.Context, address string) (*model.PatientContact, error) {
	query := `SELECT ` + contactColumns + ` FROM patient_contacts
		WHERE phone = $1 OR whatsapp = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	c, err := scanContact(r.db.QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("patient contact", address)
		}
		r.logger.Error("failed to resolve sender address", zap.Error(err))
		return nil, fmt.Errorf("failed to resolve sender address: %w", err)
	}

	return c, nil
}

// Upsert stores the delivery addresses of a patient
func (r *ContactRepository) Upsert(ctx context.Context, c *model.PatientContact) error {
	query := `
		INSERT INTO patient_contacts (patient_id, name, phone, whatsapp, email, push_token, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (patient_id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			whatsapp = EXCLUDED.whatsapp,
			email = EXCLUDED.email,
			push_token = EXCLUDED.push_token,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		c.PatientID,
		c.Name,
		c.Phone,
		c.WhatsApp,
		c.Email,
		c.PushToken,
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to upsert patient contact", zap.Error(err), zap.String("patient_id", c.PatientID))
		return fmt.Errorf("failed to upsert patient contact: %w", err)
	}

	return nil
}
