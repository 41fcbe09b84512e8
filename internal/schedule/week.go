package schedule

import "time"

// Day is one column of a Monday-first week grid.
type Day struct {
	Date    time.Time `json:"date"`
	Key     string    `json:"key"`     // YYYY-MM-DD
	Name    string    `json:"name"`    // localized abbreviation
	Display string    `json:"display"` // DD/MM
}

// dayNames are indexed by time.Weekday.
var dayNames = map[string][7]string{
	"en": {"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	"vi": {"CN", "T2", "T3", "T4", "T5", "T6", "T7"},
}

// WeekStart returns midnight of the Monday of d's week, in d's location.
// Sunday belongs to the week that started six days earlier.
func WeekStart(d time.Time) time.Time {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	wd := int(day.Weekday())
	shift := 1 - wd
	if wd == 0 {
		shift = -6
	}
	return day.AddDate(0, 0, shift)
}

// Week returns the seven days of d's week, Monday first. Unknown locales
// fall back to English names.
func Week(d time.Time, locale string) []Day {
	names, ok := dayNames[locale]
	if !ok {
		names = dayNames["en"]
	}
	start := WeekStart(d)
	days := make([]Day, 7)
	for i := range days {
		date := start.AddDate(0, 0, i)
		days[i] = Day{
			Date:    date,
			Key:     date.Format(DateLayout),
			Name:    names[date.Weekday()],
			Display: date.Format("02/01"),
		}
	}
	return days
}

// WeekRange returns the first and last day of d's week.
func WeekRange(d time.Time) (time.Time, time.Time) {
	start := WeekStart(d)
	return start, start.AddDate(0, 0, 6)
}

// column maps a weekday to its Monday-first column index.
func column(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
