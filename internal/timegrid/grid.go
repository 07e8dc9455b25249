package timegrid

import "fmt"

// ErrClosedDay reports a slot lookup against a day with no open window.
type ErrClosedDay struct {
	Day Weekday
}

func (e *ErrClosedDay) Error() string {
	return fmt.Sprintf("day %s has no open window", e.Day)
}

// Grid discretizes the scheduling week into fixed-length slots. Each open day
// contributes floor(window/slotMinutes) slots; slots are numbered globally,
// 0-based, Monday first.
type Grid struct {
	slotMinutes int
	windows     [7]Span
	open        [7]bool
	dayPrefix   [7]int
	slotsInDay  [7]int
	totalSlots  int
}

// New constructs a grid from the per-day windows. Days absent from the map,
// or present with a closed span, contribute no slots.
func New(slotMinutes int, windows map[Weekday]Span) (*Grid, error) {
	if slotMinutes <= 0 || 60%slotMinutes != 0 {
		return nil, fmt.Errorf("slot minutes %d must be a positive divisor of 60", slotMinutes)
	}

	g := &Grid{slotMinutes: slotMinutes}
	count := 0
	for _, day := range Weekdays {
		g.dayPrefix[day] = count
		span, ok := windows[day]
		if !ok || span.IsClosed() {
			continue
		}
		g.windows[day] = span
		g.open[day] = true
		g.slotsInDay[day] = span.Duration() / slotMinutes
		count += g.slotsInDay[day]
	}
	g.totalSlots = count
	return g, nil
}

// SlotMinutes returns the slot granularity in minutes.
func (g *Grid) SlotMinutes() int { return g.slotMinutes }

// SlotsPerHour returns how many slots make up one hour.
func (g *Grid) SlotsPerHour() int { return 60 / g.slotMinutes }

// TotalSlots returns the number of slots in the whole week.
func (g *Grid) TotalSlots() int { return g.totalSlots }

// SlotsInDay returns the slot count for one day.
func (g *Grid) SlotsInDay(day Weekday) int {
	if !day.Valid() {
		return 0
	}
	return g.slotsInDay[day]
}

// DayPrefix returns the global index of the day's first slot.
func (g *Grid) DayPrefix(day Weekday) int {
	if !day.Valid() {
		return 0
	}
	return g.dayPrefix[day]
}

// DayWindow returns the day's open window and whether the day is open.
func (g *Grid) DayWindow(day Weekday) (Span, bool) {
	if !day.Valid() || !g.open[day] {
		return Span{}, false
	}
	return g.windows[day], true
}

// ToGlobalSlot maps a day and time to a global slot index. Times before the
// day's window clamp to the day's first slot; times after it clamp to the
// day's last slot start. A closed day is an error.
func (g *Grid) ToGlobalSlot(day Weekday, t TimeOfDay) (int, error) {
	if !day.Valid() || !g.open[day] {
		return 0, &ErrClosedDay{Day: day}
	}
	window := g.windows[day]
	if t < window.Start {
		return g.dayPrefix[day], nil
	}
	if t > window.End {
		return g.dayPrefix[day] + g.slotsInDay[day] - 1, nil
	}
	return g.dayPrefix[day] + int(t-window.Start)/g.slotMinutes, nil
}

// SlotToDayTime maps a global slot index to its day and slot start time.
func (g *Grid) SlotToDayTime(slot int) (Weekday, TimeOfDay, error) {
	if slot < 0 || slot >= g.totalSlots {
		return 0, 0, fmt.Errorf("slot %d outside grid of %d slots", slot, g.totalSlots)
	}
	for _, day := range Weekdays {
		if !g.open[day] {
			continue
		}
		if slot < g.dayPrefix[day]+g.slotsInDay[day] {
			return day, g.SlotTimeWithin(day, slot), nil
		}
	}
	return 0, 0, fmt.Errorf("slot %d outside grid of %d slots", slot, g.totalSlots)
}

// SlotTimeWithin resolves a slot boundary to a time on the given day. The
// exclusive boundary slot (one past the day's last slot) resolves to the
// day's window end, which is what end-time decoding needs.
func (g *Grid) SlotTimeWithin(day Weekday, slot int) TimeOfDay {
	if !day.Valid() || !g.open[day] {
		return Midnight
	}
	offset := slot - g.dayPrefix[day]
	return g.windows[day].Start + TimeOfDay(offset*g.slotMinutes)
}
