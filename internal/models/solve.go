package models

import (
	"time"

	"github.com/verve-studios/scheduler-api/internal/timegrid"
)

// Organization is the tenant owning studios, instructors, and terms.
type Organization struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Term is a scheduling period within an organization.
type Term struct {
	ID             int64     `db:"id" json:"id"`
	OrganizationID int64     `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
}

// StudioLocation is a physical studio site containing rooms.
type StudioLocation struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Room is a bookable space at a studio location. Operating hours feed the
// effective day window computation and do not cross the worker message wire.
type Room struct {
	ID             int64                                `db:"id" json:"id"`
	Name           string                               `db:"name" json:"name"`
	StudioLocation StudioLocation                       `json:"studioLocation"`
	OperatingHours map[timegrid.Weekday][]timegrid.Span `json:"-"`
}

// AvailabilitySlot is one half-open weekly window an instructor can teach in.
type AvailabilitySlot struct {
	ID        int64              `db:"id" json:"id"`
	DayOfWeek timegrid.Weekday   `db:"day_of_week" json:"dayOfWeek"`
	StartTime timegrid.TimeOfDay `db:"start_time" json:"startTime"`
	EndTime   timegrid.TimeOfDay `db:"end_time" json:"endTime"`
}

// Instructor teaches priority blocks within availability windows.
type Instructor struct {
	ID                int64              `db:"id" json:"id"`
	Name              string             `db:"name" json:"name"`
	AvailabilitySlots []AvailabilitySlot `json:"availabilitySlots"`
}

// PriorityRequest asks for one contiguous weekly block for an instructor.
type PriorityRequest struct {
	ID               int64           `db:"id" json:"id"`
	Instructor       Instructor      `json:"instructor"`
	StudioLocation   *StudioLocation `json:"studioLocation"`
	BlockLengthHours int             `db:"block_length_hours" json:"blockLengthHours"`
	Active           bool            `db:"active" json:"active"`
}

// ClassDefinition describes a class offering. Carried in the snapshot for the
// session-scheduling stage, which is not yet implemented.
type ClassDefinition struct {
	ID              int64  `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	DurationMinutes int    `db:"duration_minutes" json:"durationMinutes"`
}

// ClassSessionRequirement pins how many weekly sessions a class definition
// needs. Carried alongside ClassDefinition for the later stage.
type ClassSessionRequirement struct {
	ID                int64 `db:"id" json:"id"`
	ClassDefinitionID int64 `db:"class_definition_id" json:"classDefinitionId"`
	SessionsPerWeek   int   `db:"sessions_per_week" json:"sessionsPerWeek"`
}

// SolverInput is the referentially closed snapshot handed to the worker.
// It serializes as the worker message's solverInput object.
type SolverInput struct {
	SlotMinutes         int                                `json:"slotMinutes"`
	EffectiveDayWindows map[timegrid.Weekday]timegrid.Span `json:"effectiveDayWindows"`
	Instructors         []Instructor                       `json:"instructors"`
	Rooms               []Room                             `json:"rooms"`
	PriorityRequests    []PriorityRequest                  `json:"priorityRequests"`
	ClassDefinitions    []ClassDefinition                  `json:"classDefinitions"`
	ClassRequirements   []ClassSessionRequirement          `json:"classRequirements"`
}

// PlacedBlock is one scheduled priority block, decoded to human-readable form.
type PlacedBlock struct {
	RequestID      int64              `json:"request_id"`
	InstructorID   int64              `json:"instructor_id"`
	InstructorName string             `json:"instructor_name"`
	RoomID         int64              `json:"room_id"`
	RoomName       string             `json:"room_name"`
	LocationID     *int64             `json:"location_id,omitempty"`
	LocationName   *string            `json:"location_name,omitempty"`
	StartSlot      int                `json:"start_slot"`
	LengthSlots    int                `json:"length_slots"`
	DayOfWeek      timegrid.Weekday   `json:"day_of_week"`
	StartTime      timegrid.TimeOfDay `json:"start_time"`
	EndTime        timegrid.TimeOfDay `json:"end_time"`
}

// SolverOutput is the outcome of one scheduling run.
type SolverOutput struct {
	SolverStatus   string        `json:"solver_status"`
	PlacedBlocks   []PlacedBlock `json:"placed_blocks"`
	TotalRequests  int           `json:"total_requests"`
	PlacedCount    int           `json:"placed_count"`
	Diagnostics    []string      `json:"diagnostics,omitempty"`
	WallTimeMillis int64         `json:"wall_time_millis"`
}
