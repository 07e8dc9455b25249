package solver

import (
	"fmt"

	"github.com/verve-studios/scheduler-api/internal/cpsat"
	"github.com/verve-studios/scheduler-api/internal/models"
	"github.com/verve-studios/scheduler-api/internal/timegrid"
)

// decode reads placed requests out of the solve result and converts their
// slot coordinates back to day-of-week and wall-clock times. The end time is
// resolved on the start slot's day, so a block filling a day's last slot
// decodes to the day's closing time.
func (t *Timetable) decode(grid *timegrid.Grid, requests []*modelRequest, res *cpsat.Result, out *models.SolverOutput) {
	for _, mr := range requests {
		if !res.BooleanValue(mr.present) {
			continue
		}

		startSlot := int(res.Value(mr.start))
		day, startTime, err := grid.SlotToDayTime(startSlot)
		if err != nil {
			out.Diagnostics = append(out.Diagnostics,
				fmt.Sprintf("request %d: placed at undecodable slot %d: %v", mr.request.ID, startSlot, err))
			continue
		}
		endTime := grid.SlotTimeWithin(day, startSlot+mr.lengthSlots)

		block := models.PlacedBlock{
			RequestID:      mr.request.ID,
			InstructorID:   mr.request.Instructor.ID,
			InstructorName: mr.request.Instructor.Name,
			RoomID:         mr.room.ID,
			RoomName:       mr.room.Name,
			StartSlot:      startSlot,
			LengthSlots:    mr.lengthSlots,
			DayOfWeek:      day,
			StartTime:      startTime,
			EndTime:        endTime,
		}
		if loc := mr.room.StudioLocation; loc.ID != 0 {
			id := loc.ID
			name := loc.Name
			block.LocationID = &id
			block.LocationName = &name
		}
		out.PlacedBlocks = append(out.PlacedBlocks, block)
	}
}
