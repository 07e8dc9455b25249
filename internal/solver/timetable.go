package solver

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/verve-studios/scheduler-api/internal/cpsat"
	"github.com/verve-studios/scheduler-api/internal/models"
	"github.com/verve-studios/scheduler-api/internal/timegrid"
)

// Timetable places priority blocks on the weekly grid by building a
// constraint model over optional fixed-size intervals and maximizing the
// number of placed requests.
type Timetable struct {
	maxSolveTime time.Duration
	logger       *zap.Logger
}

// NewTimetable builds a timetable solver with the given wall-clock cap.
func NewTimetable(maxSolveTime time.Duration, logger *zap.Logger) *Timetable {
	if maxSolveTime <= 0 {
		maxSolveTime = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timetable{maxSolveTime: maxSolveTime, logger: logger}
}

// modelRequest pairs the domain side of one request with its solver handles.
// The domain fields are populated first; the model pass fills the handles.
type modelRequest struct {
	request     models.PriorityRequest
	room        models.Room
	lengthSlots int

	start    cpsat.IntVar
	end      cpsat.IntVar
	present  cpsat.Literal
	interval cpsat.IntervalVar
}

// Solve runs one scheduling pass over the snapshot.
func (t *Timetable) Solve(input models.SolverInput) (models.SolverOutput, error) {
	grid, err := timegrid.New(input.SlotMinutes, input.EffectiveDayWindows)
	if err != nil {
		return models.SolverOutput{}, fmt.Errorf("build time grid: %w", err)
	}

	out := models.SolverOutput{
		TotalRequests: len(input.PriorityRequests),
		PlacedBlocks:  []models.PlacedBlock{},
	}

	requests := t.prepareRequests(grid, input, &out)
	if len(requests) == 0 {
		out.SolverStatus = cpsat.Optimal.String()
		t.logger.Info("no schedulable requests",
			zap.Int("total_requests", out.TotalRequests),
			zap.Int("diagnostics", len(out.Diagnostics)))
		return out, nil
	}

	model := cpsat.NewModel()
	t.buildModel(model, grid, requests, &out)

	s := &cpsat.Solver{MaxTime: t.maxSolveTime}
	res := s.Solve(model)
	out.SolverStatus = res.Status().String()
	out.WallTimeMillis = res.WallTime().Milliseconds()

	switch res.Status() {
	case cpsat.Optimal, cpsat.Feasible:
		t.decode(grid, requests, res, &out)
	default:
		out.Diagnostics = append(out.Diagnostics,
			fmt.Sprintf("solver returned %s; no placements read back", res.Status()))
	}

	out.PlacedCount = len(out.PlacedBlocks)
	t.logger.Info("solve finished",
		zap.String("status", out.SolverStatus),
		zap.Int("total_requests", out.TotalRequests),
		zap.Int("placed", out.PlacedCount),
		zap.Int64("wall_time_ms", out.WallTimeMillis))
	return out, nil
}

// prepareRequests filters the snapshot's requests down to schedulable ones
// and resolves a target room for each.
func (t *Timetable) prepareRequests(grid *timegrid.Grid, input models.SolverInput, out *models.SolverOutput) []*modelRequest {
	rooms := append([]models.Room(nil), input.Rooms...)
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })

	prepared := make([]*modelRequest, 0, len(input.PriorityRequests))
	for _, req := range input.PriorityRequests {
		if !req.Active {
			out.Diagnostics = append(out.Diagnostics,
				fmt.Sprintf("request %d: inactive, skipped", req.ID))
			continue
		}

		lengthSlots := req.BlockLengthHours * grid.SlotsPerHour()
		if lengthSlots < 1 || lengthSlots > grid.TotalSlots() {
			out.Diagnostics = append(out.Diagnostics,
				fmt.Sprintf("request %d: block of %d slots does not fit a %d-slot week, dropped",
					req.ID, lengthSlots, grid.TotalSlots()))
			continue
		}

		room, ok := pickRoom(rooms, req.StudioLocation)
		if !ok {
			out.Diagnostics = append(out.Diagnostics,
				fmt.Sprintf("request %d: no rooms in scope, dropped", req.ID))
			continue
		}

		prepared = append(prepared, &modelRequest{
			request:     req,
			room:        room,
			lengthSlots: lengthSlots,
		})
	}
	return prepared
}

// pickRoom selects the lowest-id room at the preferred location when one is
// set and has rooms, and otherwise the lowest-id room overall. Rooms must be
// sorted by id.
func pickRoom(rooms []models.Room, preferred *models.StudioLocation) (models.Room, bool) {
	if len(rooms) == 0 {
		return models.Room{}, false
	}
	if preferred != nil {
		for _, room := range rooms {
			if room.StudioLocation.ID == preferred.ID {
				return room, true
			}
		}
	}
	return rooms[0], true
}

// buildModel emits variables and constraints for the prepared requests.
func (t *Timetable) buildModel(model *cpsat.Model, grid *timegrid.Grid, requests []*modelRequest, out *models.SolverOutput) {
	total := int64(grid.TotalSlots())

	byInstructor := map[int64][]cpsat.IntervalVar{}
	byRoom := map[int64][]cpsat.IntervalVar{}
	presents := make([]cpsat.Literal, 0, len(requests))

	for _, mr := range requests {
		size := int64(mr.lengthSlots)
		mr.start = model.NewIntVar(0, total-size, fmt.Sprintf("start_req_%d", mr.request.ID))
		mr.present = model.NewBoolVar(fmt.Sprintf("present_req_%d", mr.request.ID))
		mr.end = model.NewIntVar(0, total, fmt.Sprintf("end_req_%d", mr.request.ID))
		model.AddEqualityOffset(mr.end, mr.start, size).OnlyEnforceIf(mr.present)
		mr.interval = model.NewOptionalFixedSizeIntervalVar(mr.start, size, mr.present, fmt.Sprintf("iv_req_%d", mr.request.ID))

		byInstructor[mr.request.Instructor.ID] = append(byInstructor[mr.request.Instructor.ID], mr.interval)
		byRoom[mr.room.ID] = append(byRoom[mr.room.ID], mr.interval)
		presents = append(presents, mr.present)

		t.addWindowConstraints(model, grid, mr, out)
	}

	for _, id := range sortedKeys(byInstructor) {
		model.AddNoOverlap(byInstructor[id]...)
	}
	for _, id := range sortedKeys(byRoom) {
		model.AddNoOverlap(byRoom[id]...)
	}

	model.Maximize(presents...)
}

// addWindowConstraints translates the instructor's availability windows into
// a disjunction of admissible start ranges for the request.
func (t *Timetable) addWindowConstraints(model *cpsat.Model, grid *timegrid.Grid, mr *modelRequest, out *models.SolverOutput) {
	size := int64(mr.lengthSlots)
	wins := make([]cpsat.Literal, 0, len(mr.request.Instructor.AvailabilitySlots))

	for _, slot := range mr.request.Instructor.AvailabilitySlots {
		wStart, err := grid.ToGlobalSlot(slot.DayOfWeek, slot.StartTime)
		if err != nil {
			out.Diagnostics = append(out.Diagnostics,
				fmt.Sprintf("request %d: availability %d on %s outside grid: %v",
					mr.request.ID, slot.ID, slot.DayOfWeek, err))
			continue
		}
		wEnd, err := grid.ToGlobalSlot(slot.DayOfWeek, slot.EndTime)
		if err != nil {
			out.Diagnostics = append(out.Diagnostics,
				fmt.Sprintf("request %d: availability %d on %s outside grid: %v",
					mr.request.ID, slot.ID, slot.DayOfWeek, err))
			continue
		}
		if int64(wEnd)-int64(wStart) < size {
			out.Diagnostics = append(out.Diagnostics,
				fmt.Sprintf("request %d: availability %d on %s too short for %d slots",
					mr.request.ID, slot.ID, slot.DayOfWeek, mr.lengthSlots))
			continue
		}

		win := model.NewBoolVar(fmt.Sprintf("win_req_%d_slot_%d", mr.request.ID, slot.ID))
		model.AddGreaterOrEqual(mr.start, int64(wStart)).OnlyEnforceIf(win)
		model.AddLessOrEqual(mr.start, int64(wEnd)-size).OnlyEnforceIf(win)
		model.AddImplication(win, mr.present)
		wins = append(wins, win)
	}

	if len(wins) == 0 {
		out.Diagnostics = append(out.Diagnostics,
			fmt.Sprintf("request %d: no valid window, cannot be placed", mr.request.ID))
		model.AddImplication(mr.present, model.FalseLiteral())
		return
	}
	model.AddExactlyOne(append(wins, mr.present.Not())...)
}

func sortedKeys(m map[int64][]cpsat.IntervalVar) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
