package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
)

// PerformerSystem identifies entries written without a human actor.
const PerformerSystem = "system"

// PerformerCollector formats the audit identity for a collector.
func PerformerCollector(id uuid.UUID) string {
	return fmt.Sprintf("collector:%s", id)
}

// PerformerCrew formats the audit identity for a crew.
func PerformerCrew(id uuid.UUID) string {
	return fmt.Sprintf("crew:%s", id)
}

// Entry carries the fields of a single audit record.
type Entry struct {
	OrderID     uuid.UUID
	Status      enums.OrderStatus
	Notes       string
	PerformedBy string
	At          time.Time
}

// Recorder appends audit entries for order mutations. Record requires the
// caller's transaction so an entry can never outlive a rolled-back change.
type Recorder struct {
	repo Repository
}

// NewRecorder builds a timeline recorder backed by the given repository.
func NewRecorder(repo Repository) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("timeline repository required")
	}
	return &Recorder{repo: repo}, nil
}

// Record inserts one audit entry inside tx.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "timeline record requires a transaction")
	}
	if entry.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !entry.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	performedBy := entry.PerformedBy
	if performedBy == "" {
		performedBy = PerformerSystem
	}

	row := &models.TimelineEntry{
		OrderID:     entry.OrderID,
		Status:      entry.Status,
		Notes:       entry.Notes,
		PerformedBy: performedBy,
	}
	if !entry.At.IsZero() {
		row.CreatedAt = entry.At
	}

	if err := r.repo.WithTx(tx).Create(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert timeline entry")
	}
	return nil
}

// ListByOrder returns the order's audit trail, oldest first.
func (r *Recorder) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	entries, err := r.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list timeline entries")
	}
	return entries, nil
}
