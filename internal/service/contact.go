package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

const whatsAppPrefix = "whatsapp:"

// ContactResolver looks up patient delivery addresses through a read cache
type ContactResolver struct {
	repo   ContactRepositoryInterface
	cache  *cache.Cache
	audit  AuditRecorder
	logger *zap.Logger
}

// NewContactResolver creates a new ContactResolver. Cached contacts expire after ttl.
func NewContactResolver(repo ContactRepositoryInterface, ttl time.Duration, auditor AuditRecorder, logger *zap.Logger) *ContactResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ContactResolver{
		repo:   repo,
		cache:  cache.New(ttl, 2*ttl),
		audit:  auditor,
		logger: logger,
	}
}

// Resolve returns the contact of a patient
func (r *ContactResolver) Resolve(ctx context.Context, patientID string) (*model.PatientContact, error) {
	if cached, ok := r.cache.Get(patientID); ok {
		return cached.(*model.PatientContact), nil
	}

	contact, err := r.repo.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve patient contact: %w", err)
	}

	r.cache.SetDefault(patientID, contact)
	return contact, nil
}

// ResolveSender maps an inbound sender address to a patient contact.
// Twilio prefixes WhatsApp senders with "whatsapp:".
func (r *ContactResolver) ResolveSender(ctx context.Context, address string) (*model.PatientContact, error) {
	address = NormalizeAddress(address)
	if address == "" {
		return nil, apperror.Validation("sender address is required")
	}

	contact, err := r.repo.FindByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender: %w", err)
	}
	return contact, nil
}

// NormalizeAddress strips the channel prefix and surrounding whitespace from an address
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if len(address) >= len(whatsAppPrefix) && strings.EqualFold(address[:len(whatsAppPrefix)], whatsAppPrefix) {
		address = address[len(whatsAppPrefix):]
	}
	return strings.TrimSpace(address)
}

// Upsert stores the delivery addresses of a patient and drops the cached copy
func (r *ContactResolver) Upsert(ctx context.Context, actor audit.Actor, contact *model.PatientContact) error {
	if contact.PatientID == "" {
		return apperror.Validation("patient id is required")
	}
	for _, addr := range []*string{contact.Phone, contact.WhatsApp} {
		if addr != nil {
			*addr = NormalizeAddress(*addr)
		}
	}
	contact.UpdatedAt = time.Now()

	if err := r.repo.Upsert(ctx, contact); err != nil {
		return fmt.Errorf("failed to store patient contact: %w", err)
	}
	r.cache.Delete(contact.PatientID)

	if err := r.audit.Record(ctx, actor, audit.OperationUpdate, audit.ResourceContact, contact.PatientID, nil); err != nil {
		r.logger.Warn("failed to audit contact update", zap.Error(err), zap.String("patient_id", contact.PatientID))
	}

	r.logger.Info("patient contact updated", zap.String("patient_id", contact.PatientID))
	return nil
}

// Invalidate drops the cached contact of a patient
func (r *ContactResolver) Invalidate(patientID string) {
	r.cache.Delete(patientID)
}
