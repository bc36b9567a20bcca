package assignments

import (
	"time"

	"github.com/google/uuid"

	"github.com/scraplinehq/scrapline-backend/internal/timeline"
	"github.com/scraplinehq/scrapline-backend/pkg/db/models"
	"github.com/scraplinehq/scrapline-backend/pkg/enums"
	pkgerrors "github.com/scraplinehq/scrapline-backend/pkg/errors"
	"github.com/scraplinehq/scrapline-backend/pkg/pagination"
)

// Actor identifies who is acting on an assignment: a collector or a crew,
// never both.
type Actor struct {
	Kind enums.ActorKind
	ID   uuid.UUID
}

// NewActor builds an Actor from the optional identity pair. Exactly one of
// the two ids must be set.
func NewActor(collectorID, crewID *uuid.UUID) (Actor, error) {
	hasCollector := collectorID != nil && *collectorID != uuid.Nil
	hasCrew := crewID != nil && *crewID != uuid.Nil

	switch {
	case hasCollector && hasCrew:
		return Actor{}, pkgerrors.New(pkgerrors.CodeValidation, "actor cannot be both collector and crew")
	case hasCollector:
		return Actor{Kind: enums.ActorKindCollector, ID: *collectorID}, nil
	case hasCrew:
		return Actor{Kind: enums.ActorKindCrew, ID: *crewID}, nil
	default:
		return Actor{}, pkgerrors.New(pkgerrors.CodeValidation, "collector or crew identity required")
	}
}

// Holds reports whether the actor is the holder of the assignment.
func (a Actor) Holds(assignment *models.Assignment) bool {
	switch a.Kind {
	case enums.ActorKindCollector:
		return assignment.CollectorID != nil && *assignment.CollectorID == a.ID
	case enums.ActorKindCrew:
		return assignment.CrewID != nil && *assignment.CrewID == a.ID
	default:
		return false
	}
}

// Performer returns the audit identity written to the timeline.
func (a Actor) Performer() string {
	if a.Kind == enums.ActorKindCrew {
		return timeline.PerformerCrew(a.ID)
	}
	return timeline.PerformerCollector(a.ID)
}

// StartInput carries the request to begin work on an assignment.
type StartInput struct {
	OrderID      uuid.UUID
	AssignmentID uuid.UUID
	Actor        Actor
	At           time.Time
}

// CompleteInput carries the request to finish an assignment.
type CompleteInput struct {
	OrderID      uuid.UUID
	AssignmentID uuid.UUID
	Actor        Actor
	Notes        *string
	Photos       []string
	At           time.Time
}

// AssignmentDetail is the joined projection returned after mutations and
// single-assignment reads.
type AssignmentDetail struct {
	Assignment models.Assignment `json:"assignment"`
	Order      models.Order      `json:"order"`
	HolderName string            `json:"holder_name"`
}

// AssignmentSummary is one row of a collector's or crew's assignment list.
type AssignmentSummary struct {
	ID          uuid.UUID              `json:"id"`
	OrderID     uuid.UUID              `json:"order_id"`
	OrderNumber int64                  `json:"order_number"`
	Address     string                 `json:"address"`
	OrderStatus enums.OrderStatus      `json:"order_status"`
	Status      enums.AssignmentStatus `json:"status"`
	StartTime   *time.Time             `json:"start_time,omitempty"`
	EndTime     *time.Time             `json:"end_time,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// AssignmentList wraps a page of assignment summaries.
type AssignmentList struct {
	Assignments []AssignmentSummary `json:"assignments"`
	Pagination  pagination.Meta     `json:"pagination"`
}
