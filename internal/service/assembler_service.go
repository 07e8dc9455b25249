package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/verve-studios/scheduler-api/internal/models"
	"github.com/verve-studios/scheduler-api/internal/repository"
	"github.com/verve-studios/scheduler-api/internal/timegrid"
	appErrors "github.com/verve-studios/scheduler-api/pkg/errors"
)

type snapshotStore interface {
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	GetTerm(ctx context.Context, id int64) (*models.Term, error)
	GetStudioLocation(ctx context.Context, id int64) (*models.StudioLocation, int64, error)
	ListRooms(ctx context.Context, organizationID int64, locationID *int64) ([]models.Room, error)
	ListInstructors(ctx context.Context, organizationID int64) ([]models.Instructor, error)
	ListPriorityRequests(ctx context.Context, termID int64, locationID *int64) ([]repository.PriorityRequestRow, error)
	ListClassDefinitions(ctx context.Context, organizationID int64) ([]models.ClassDefinition, error)
	ListClassRequirements(ctx context.Context, termID int64) ([]models.ClassSessionRequirement, error)
}

// AssemblerService builds the referentially closed snapshot handed to the
// solver worker.
type AssemblerService struct {
	store       snapshotStore
	slotMinutes int
	logger      *zap.Logger
}

// NewAssemblerService constructs the assembler.
func NewAssemblerService(store snapshotStore, slotMinutes int, logger *zap.Logger) *AssemblerService {
	if slotMinutes <= 0 {
		slotMinutes = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssemblerService{store: store, slotMinutes: slotMinutes, logger: logger}
}

// BuildSnapshot validates the scope references and assembles the solver
// input. Unknown or cross-organization references are validation errors; a
// scope with no rooms is not, the solve simply places nothing.
func (s *AssemblerService) BuildSnapshot(ctx context.Context, organizationID, termID int64, locationID *int64) (*models.SolverInput, error) {
	org, err := s.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return nil, referenceError(err, fmt.Sprintf("organization %d not found", organizationID), "failed to load organization")
	}

	term, err := s.store.GetTerm(ctx, termID)
	if err != nil {
		return nil, referenceError(err, fmt.Sprintf("term %d not found", termID), "failed to load term")
	}
	if term.OrganizationID != org.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("term %d does not belong to organization %d", termID, organizationID))
	}

	if locationID != nil {
		_, ownerID, err := s.store.GetStudioLocation(ctx, *locationID)
		if err != nil {
			return nil, referenceError(err, fmt.Sprintf("studio location %d not found", *locationID), "failed to load studio location")
		}
		if ownerID != org.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("studio location %d does not belong to organization %d", *locationID, organizationID))
		}
	}

	rooms, err := s.store.ListRooms(ctx, organizationID, locationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	if len(rooms) == 0 {
		s.logger.Warn("no rooms in scope, solve will place nothing",
			zap.Int64("organization_id", organizationID),
			zap.Int64p("location_id", locationID))
	}

	instructors, err := s.store.ListInstructors(ctx, organizationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructors")
	}

	requestRows, err := s.store.ListPriorityRequests(ctx, termID, locationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load priority requests")
	}

	defs, err := s.store.ListClassDefinitions(ctx, organizationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class definitions")
	}
	reqs, err := s.store.ListClassRequirements(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class requirements")
	}

	byInstructor := make(map[int64]models.Instructor, len(instructors))
	for _, instructor := range instructors {
		byInstructor[instructor.ID] = instructor
	}

	priorityRequests := make([]models.PriorityRequest, 0, len(requestRows))
	for _, row := range requestRows {
		instructor, ok := byInstructor[row.InstructorID]
		if !ok {
			s.logger.Warn("priority request references instructor outside organization, skipped",
				zap.Int64("request_id", row.ID),
				zap.Int64("instructor_id", row.InstructorID))
			continue
		}
		req := models.PriorityRequest{
			ID:               row.ID,
			Instructor:       instructor,
			BlockLengthHours: row.BlockLengthHours,
			Active:           row.Active,
		}
		if row.LocationID != nil {
			loc := models.StudioLocation{ID: *row.LocationID}
			if row.LocationName != nil {
				loc.Name = *row.LocationName
			}
			req.StudioLocation = &loc
		}
		priorityRequests = append(priorityRequests, req)
	}

	return &models.SolverInput{
		SlotMinutes:         s.slotMinutes,
		EffectiveDayWindows: effectiveDayWindows(rooms),
		Instructors:         instructors,
		Rooms:               rooms,
		PriorityRequests:    priorityRequests,
		ClassDefinitions:    defs,
		ClassRequirements:   reqs,
	}, nil
}

// effectiveDayWindows summarizes each day's operating hours across all rooms
// in scope as {earliest start, latest end}. Days no room opens stay closed.
func effectiveDayWindows(rooms []models.Room) map[timegrid.Weekday]timegrid.Span {
	windows := make(map[timegrid.Weekday]timegrid.Span, 7)
	for _, day := range timegrid.Weekdays {
		window := timegrid.Span{Start: timegrid.Midnight, End: timegrid.Midnight}
		found := false
		for _, room := range rooms {
			for _, span := range room.OperatingHours[day] {
				if span.IsClosed() {
					continue
				}
				if !found || span.Start < window.Start {
					window.Start = span.Start
				}
				if !found || span.End > window.End {
					window.End = span.End
				}
				found = true
			}
		}
		windows[day] = window
	}
	return windows
}

func referenceError(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrValidation, notFoundMsg)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internalMsg)
}
