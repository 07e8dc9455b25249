package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/verve-studios/scheduler-api/internal/timegrid"
)

func TestSnapshotRepositoryGetOrganizationAndTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSnapshotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM organizations WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Verve"))
	org, err := repo.GetOrganization(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Verve", org.Name)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, organization_id, name, start_date, end_date FROM terms WHERE id = $1")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "start_date", "end_date"}).
			AddRow(int64(2), int64(1), "Fall 2026", time.Now(), time.Now().AddDate(0, 3, 0)))
	term, err := repo.GetTerm(context.Background(), 2)
	require.NoError(t, err)
	require.EqualValues(t, 1, term.OrganizationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryListRoomsHydratesHours(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSnapshotRepository(db)

	roomRows := sqlmock.NewRows([]string{"id", "name", "location_id", "location_name"}).
		AddRow(int64(1), "Studio A", int64(10), "Downtown").
		AddRow(int64(2), "Studio B", int64(10), "Downtown")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN studio_locations l ON l.id = r.studio_location_id")).
		WithArgs(int64(1)).
		WillReturnRows(roomRows)

	hourRows := sqlmock.NewRows([]string{"room_id", "day_of_week", "start_time", "end_time"}).
		AddRow(int64(1), "MONDAY", "09:00:00", "17:00:00").
		AddRow(int64(1), "TUESDAY", "09:00:00", "12:00:00").
		AddRow(int64(2), "MONDAY", "10:00:00", "18:00:00")
	mock.ExpectQuery(regexp.QuoteMeta("FROM room_operating_hours WHERE room_id IN")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(hourRows)

	rooms, err := repo.ListRooms(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, "Downtown", rooms[0].StudioLocation.Name)
	require.Len(t, rooms[0].OperatingHours[timegrid.Monday], 1)
	require.Equal(t, timegrid.NewTimeOfDay(9, 0), rooms[0].OperatingHours[timegrid.Monday][0].Start)
	require.Len(t, rooms[1].OperatingHours[timegrid.Monday], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryListRoomsScopedToLocation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSnapshotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND l.id = $2")).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "location_id", "location_name"}))

	locID := int64(10)
	rooms, err := repo.ListRooms(context.Background(), 1, &locID)
	require.NoError(t, err)
	require.Empty(t, rooms)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryListInstructors(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSnapshotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM instructors WHERE organization_id = $1 ORDER BY id ASC")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ava"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM availability_slots WHERE instructor_id IN")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "instructor_id", "day_of_week", "start_time", "end_time"}).
			AddRow(int64(100), int64(1), "MONDAY", "09:00:00", "17:00:00"))

	instructors, err := repo.ListInstructors(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, instructors, 1)
	require.Len(t, instructors[0].AvailabilitySlots, 1)
	require.Equal(t, timegrid.Monday, instructors[0].AvailabilitySlots[0].DayOfWeek)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryListPriorityRequests(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSnapshotRepository(db)

	locName := "Downtown"
	rows := sqlmock.NewRows([]string{"id", "instructor_id", "location_id", "location_name", "block_length_hours", "active"}).
		AddRow(int64(1), int64(1), int64(10), locName, 2, true).
		AddRow(int64(2), int64(1), nil, nil, 3, true)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE pr.term_id = $1 AND pr.active = TRUE")).
		WithArgs(int64(2)).
		WillReturnRows(rows)

	requests, err := repo.ListPriorityRequests(context.Background(), 2, nil)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	require.NotNil(t, requests[0].LocationID)
	require.Nil(t, requests[1].LocationID)
	require.NoError(t, mock.ExpectationsWereMet())
}
