package schedule

import (
	"sort"
	"time"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

// GroupByDate indexes timeslots by their YYYY-MM-DD date key, each group
// sorted by slot index.
func GroupByDate(slots []models.Timeslot) map[string][]models.Timeslot {
	grouped := make(map[string][]models.Timeslot)
	for _, s := range slots {
		key := s.DateKey()
		grouped[key] = append(grouped[key], s)
	}
	for _, group := range grouped {
		sort.SliceStable(group, func(i, j int) bool { return group[i].SlotIndex < group[j].SlotIndex })
	}
	return grouped
}

// Cell is one (day, slot index) position of a week grid. Slot is nil for an
// empty cell.
type Cell struct {
	Day       Day              `json:"day"`
	SlotIndex int              `json:"slot_index"`
	Slot      *models.Timeslot `json:"slot,omitempty"`
}

// Empty reports whether no timeslot occupies the cell.
func (c Cell) Empty() bool { return c.Slot == nil }

// WeekGrid is the week view of one doctor's timeslots.
type WeekGrid struct {
	Days  []Day `json:"days"`
	cells map[string]map[int]models.Timeslot
}

// BuildGrid groups slots onto the week containing d. Slots outside that week
// are ignored.
func BuildGrid(d time.Time, locale string, slots []models.Timeslot) *WeekGrid {
	g := &WeekGrid{
		Days:  Week(d, locale),
		cells: make(map[string]map[int]models.Timeslot),
	}
	for key, group := range GroupByDate(slots) {
		row := make(map[int]models.Timeslot, len(group))
		for _, s := range group {
			row[s.SlotIndex] = s
		}
		g.cells[key] = row
	}
	return g
}

// Cell looks a position up by weekday and slot index. A missing slot yields
// an empty cell; an out-of-range slot index does too.
func (g *WeekGrid) Cell(wd time.Weekday, slotIndex int) Cell {
	day := g.Days[column(wd)]
	c := Cell{Day: day, SlotIndex: slotIndex}
	if s, ok := g.cells[day.Key][slotIndex]; ok {
		c.Slot = &s
	}
	return c
}

// Rows returns the grid as MaxSlotIndex rows of seven cells, the shape used
// for tabular display.
func (g *WeekGrid) Rows() [][]Cell {
	rows := make([][]Cell, 0, MaxSlotIndex)
	for idx := MinSlotIndex; idx <= MaxSlotIndex; idx++ {
		row := make([]Cell, len(g.Days))
		for i, day := range g.Days {
			row[i] = g.Cell(day.Date.Weekday(), idx)
		}
		rows = append(rows, row)
	}
	return rows
}

// Filled counts the non-empty cells of the week.
func (g *WeekGrid) Filled() int {
	n := 0
	for _, day := range g.Days {
		n += len(g.cells[day.Key])
	}
	return n
}
