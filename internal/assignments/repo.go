package assignments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an assignments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// forUpdate applies a row lock on dialects that support it. sqlite has no
// row locks; its writes serialize on the database lock instead.
func (r *repository) forUpdate(q *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.forUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindByOrderForUpdate(ctx context.Context, orderID uuid.UUID) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.forUpdate(r.db.WithContext(ctx)).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.forUpdate(r.db.WithContext(ctx)).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateAssignment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FindDetail(ctx context.Context, id uuid.UUID) (*AssignmentDetail, error) {
	assignment, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", assignment.OrderID).First(&order).Error; err != nil {
		return nil, err
	}

	detail := &AssignmentDetail{Assignment: *assignment, Order: order}

	switch {
	case assignment.CollectorID != nil:
		var collector models.Collector
		if err := r.db.WithContext(ctx).Where("id = ?", *assignment.CollectorID).First(&collector).Error; err == nil {
			detail.HolderName = collector.Name
		}
	case assignment.CrewID != nil:
		var crew models.Crew
		if err := r.db.WithContext(ctx).Where("id = ?", *assignment.CrewID).First(&crew).Error; err == nil {
			detail.HolderName = crew.Name
		}
	}

	return detail, nil
}

func (r *repository) ListByCollector(ctx context.Context, collectorID uuid.UUID, params pagination.Params) (*AssignmentList, error) {
	return r.list(ctx, "assignments.collector_id = ?", collectorID, params)
}

func (r *repository) ListByCrew(ctx context.Context, crewID uuid.UUID, params pagination.Params) (*AssignmentList, error) {
	return r.list(ctx, "assignments.crew_id = ?", crewID, params)
}

func (r *repository) list(ctx context.Context, holderCond string, holderID uuid.UUID, params pagination.Params) (*AssignmentList, error) {
	params = params.Normalize()

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Table("assignments").
			Joins("JOIN orders ON orders.id = assignments.order_id").
			Where(holderCond, holderID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []AssignmentSummary
	err := base().
		Select(`assignments.id, assignments.order_id, orders.order_number, orders.address,
			orders.order_status, assignments.status, assignments.start_time,
			assignments.end_time, assignments.created_at`).
		Order("assignments.created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return &AssignmentList{
		Assignments: rows,
		Pagination:  pagination.NewMeta(params, total),
	}, nil
}
