package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/verve-studios/scheduler-api/internal/models"
	"github.com/verve-studios/scheduler-api/internal/timegrid"
)

// SnapshotRepository reads the scheduling entities that make up one solver
// snapshot. All list methods return rows in ascending id order so snapshot
// assembly is deterministic.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// GetOrganization returns an organization by id.
func (r *SnapshotRepository) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	const query = `SELECT id, name FROM organizations WHERE id = $1`
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// GetTerm returns a term by id.
func (r *SnapshotRepository) GetTerm(ctx context.Context, id int64) (*models.Term, error) {
	const query = `SELECT id, organization_id, name, start_date, end_date FROM terms WHERE id = $1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, fmt.Errorf("get term: %w", err)
	}
	return &term, nil
}

type studioLocationRow struct {
	ID             int64  `db:"id"`
	OrganizationID int64  `db:"organization_id"`
	Name           string `db:"name"`
}

// GetStudioLocation returns a location and its owning organization id.
func (r *SnapshotRepository) GetStudioLocation(ctx context.Context, id int64) (*models.StudioLocation, int64, error) {
	const query = `SELECT id, organization_id, name FROM studio_locations WHERE id = $1`
	var row studioLocationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, 0, fmt.Errorf("get studio location: %w", err)
	}
	return &models.StudioLocation{ID: row.ID, Name: row.Name}, row.OrganizationID, nil
}

type roomRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	LocationID   int64  `db:"location_id"`
	LocationName string `db:"location_name"`
}

type operatingHoursRow struct {
	RoomID    int64              `db:"room_id"`
	DayOfWeek timegrid.Weekday   `db:"day_of_week"`
	StartTime timegrid.TimeOfDay `db:"start_time"`
	EndTime   timegrid.TimeOfDay `db:"end_time"`
}

// ListRooms returns the organization's rooms, optionally narrowed to one
// location, with operating hours hydrated.
func (r *SnapshotRepository) ListRooms(ctx context.Context, organizationID int64, locationID *int64) ([]models.Room, error) {
	query := `SELECT r.id, r.name, l.id AS location_id, l.name AS location_name
FROM rooms r
JOIN studio_locations l ON l.id = r.studio_location_id
WHERE l.organization_id = $1`
	args := []interface{}{organizationID}
	if locationID != nil {
		query += ` AND l.id = $2`
		args = append(args, *locationID)
	}
	query += ` ORDER BY r.id ASC`

	var rows []roomRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	if len(rows) == 0 {
		return []models.Room{}, nil
	}

	rooms := make([]models.Room, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	index := make(map[int64]int, len(rows))
	for _, row := range rows {
		index[row.ID] = len(rooms)
		ids = append(ids, row.ID)
		rooms = append(rooms, models.Room{
			ID:             row.ID,
			Name:           row.Name,
			StudioLocation: models.StudioLocation{ID: row.LocationID, Name: row.LocationName},
			OperatingHours: map[timegrid.Weekday][]timegrid.Span{},
		})
	}

	hoursQuery, hoursArgs, err := sqlx.In(`SELECT room_id, day_of_week, start_time, end_time
FROM room_operating_hours WHERE room_id IN (?) ORDER BY room_id ASC, day_of_week ASC, start_time ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("build operating hours query: %w", err)
	}
	var hours []operatingHoursRow
	if err := r.db.SelectContext(ctx, &hours, r.db.Rebind(hoursQuery), hoursArgs...); err != nil {
		return nil, fmt.Errorf("list room operating hours: %w", err)
	}
	for _, h := range hours {
		i, ok := index[h.RoomID]
		if !ok {
			continue
		}
		rooms[i].OperatingHours[h.DayOfWeek] = append(rooms[i].OperatingHours[h.DayOfWeek],
			timegrid.Span{Start: h.StartTime, End: h.EndTime})
	}
	return rooms, nil
}

type instructorRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type availabilityRow struct {
	ID           int64              `db:"id"`
	InstructorID int64              `db:"instructor_id"`
	DayOfWeek    timegrid.Weekday   `db:"day_of_week"`
	StartTime    timegrid.TimeOfDay `db:"start_time"`
	EndTime      timegrid.TimeOfDay `db:"end_time"`
}

// ListInstructors returns the organization's instructors with availability
// windows hydrated.
func (r *SnapshotRepository) ListInstructors(ctx context.Context, organizationID int64) ([]models.Instructor, error) {
	const query = `SELECT id, name FROM instructors WHERE organization_id = $1 ORDER BY id ASC`
	var rows []instructorRow
	if err := r.db.SelectContext(ctx, &rows, query, organizationID); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	if len(rows) == 0 {
		return []models.Instructor{}, nil
	}

	instructors := make([]models.Instructor, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	index := make(map[int64]int, len(rows))
	for _, row := range rows {
		index[row.ID] = len(instructors)
		ids = append(ids, row.ID)
		instructors = append(instructors, models.Instructor{
			ID:                row.ID,
			Name:              row.Name,
			AvailabilitySlots: []models.AvailabilitySlot{},
		})
	}

	availQuery, availArgs, err := sqlx.In(`SELECT id, instructor_id, day_of_week, start_time, end_time
FROM availability_slots WHERE instructor_id IN (?) ORDER BY id ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("build availability query: %w", err)
	}
	var avail []availabilityRow
	if err := r.db.SelectContext(ctx, &avail, r.db.Rebind(availQuery), availArgs...); err != nil {
		return nil, fmt.Errorf("list availability slots: %w", err)
	}
	for _, a := range avail {
		i, ok := index[a.InstructorID]
		if !ok {
			continue
		}
		instructors[i].AvailabilitySlots = append(instructors[i].AvailabilitySlots, models.AvailabilitySlot{
			ID:        a.ID,
			DayOfWeek: a.DayOfWeek,
			StartTime: a.StartTime,
			EndTime:   a.EndTime,
		})
	}
	return instructors, nil
}

// PriorityRequestRow is the flat persisted form of a priority request. The
// assembler joins it with the hydrated instructor list.
type PriorityRequestRow struct {
	ID               int64   `db:"id"`
	InstructorID     int64   `db:"instructor_id"`
	LocationID       *int64  `db:"location_id"`
	LocationName     *string `db:"location_name"`
	BlockLengthHours int     `db:"block_length_hours"`
	Active           bool    `db:"active"`
}

// ListPriorityRequests returns the term's active requests, optionally scoped
// to requests compatible with one location (unscoped requests always match).
func (r *SnapshotRepository) ListPriorityRequests(ctx context.Context, termID int64, locationID *int64) ([]PriorityRequestRow, error) {
	query := `SELECT pr.id, pr.instructor_id, pr.studio_location_id AS location_id, l.name AS location_name, pr.block_length_hours, pr.active
FROM priority_requests pr
LEFT JOIN studio_locations l ON l.id = pr.studio_location_id
WHERE pr.term_id = $1 AND pr.active = TRUE`
	args := []interface{}{termID}
	if locationID != nil {
		query += ` AND (pr.studio_location_id IS NULL OR pr.studio_location_id = $2)`
		args = append(args, *locationID)
	}
	query += ` ORDER BY pr.id ASC`

	var rows []PriorityRequestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list priority requests: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

// ListClassDefinitions returns the organization's class definitions.
func (r *SnapshotRepository) ListClassDefinitions(ctx context.Context, organizationID int64) ([]models.ClassDefinition, error) {
	const query = `SELECT id, name, duration_minutes FROM class_definitions WHERE organization_id = $1 ORDER BY id ASC`
	var defs []models.ClassDefinition
	if err := r.db.SelectContext(ctx, &defs, query, organizationID); err != nil {
		return nil, fmt.Errorf("list class definitions: %w", err)
	}
	return defs, nil
}

// ListClassRequirements returns the term's class session requirements.
func (r *SnapshotRepository) ListClassRequirements(ctx context.Context, termID int64) ([]models.ClassSessionRequirement, error) {
	const query = `SELECT id, class_definition_id, sessions_per_week FROM class_session_requirements WHERE term_id = $1 ORDER BY id ASC`
	var reqs []models.ClassSessionRequirement
	if err := r.db.SelectContext(ctx, &reqs, query, termID); err != nil {
		return nil, fmt.Errorf("list class requirements: %w", err)
	}
	return reqs, nil
}
