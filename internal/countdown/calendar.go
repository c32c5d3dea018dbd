package countdown

import "time"

// Day is one cell of a month grid.
type Day struct {
	Date     string `json:"date"`
	Day      int    `json:"day"`
	InMonth  bool   `json:"in_month"`
	IsTarget bool   `json:"is_target"`
	IsToday  bool   `json:"is_today"`
}

// Month is a Sunday-first calendar grid.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Name  string     `json:"name"`
	Weeks [][7]Day   `json:"weeks"`
}

var monthNamesES = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// WeekdayLabels are the column headers of the grid, Sunday first.
var WeekdayLabels = [7]string{"D", "L", "M", "X", "J", "V", "S"}

// BuildMonth returns the grid for year/month in the location of today,
// marking target and today. Leading and trailing cells come from the
// neighbouring months so every week is complete.
func BuildMonth(year int, month time.Month, target, today time.Time) Month {
	loc := today.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	last := first.AddDate(0, 1, -1)
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))

	target = target.In(loc)
	m := Month{Year: year, Month: month, Name: monthNamesES[month-1]}

	var week [7]Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		week[d.Weekday()] = Day{
			Date:     d.Format(time.DateOnly),
			Day:      d.Day(),
			InMonth:  d.Month() == month,
			IsTarget: sameDay(d, target),
			IsToday:  sameDay(d, today),
		}
		if d.Weekday() == time.Saturday {
			m.Weeks = append(m.Weeks, week)
			week = [7]Day{}
		}
	}

	return m
}

// MonthOffset shifts base by n months, returning the year and month.
func MonthOffset(base time.Time, n int) (int, time.Month) {
	d := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, base.Location()).AddDate(0, n, 0)
	return d.Year(), d.Month()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
