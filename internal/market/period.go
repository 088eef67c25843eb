package market

import "time"

// TimePeriod is a named lookback window for rate diffs and block-height
// resolution.
type TimePeriod string

const (
	PeriodHour1  TimePeriod = "1h"
	PeriodHour24 TimePeriod = "24h"
	PeriodDay7   TimePeriod = "7d"
	PeriodDay14  TimePeriod = "14d"
	PeriodDay30  TimePeriod = "30d"
	PeriodDay200 TimePeriod = "200d"
	PeriodYear1  TimePeriod = "1y"
)

var periodDurations = map[TimePeriod]time.Duration{
	PeriodHour1:  time.Hour,
	PeriodHour24: 24 * time.Hour,
	PeriodDay7:   7 * 24 * time.Hour,
	PeriodDay14:  14 * 24 * time.Hour,
	PeriodDay30:  30 * 24 * time.Hour,
	PeriodDay200: 200 * 24 * time.Hour,
	PeriodYear1:  365 * 24 * time.Hour,
}

func (p TimePeriod) Duration() time.Duration { return periodDurations[p] }

// ChartType fixes the range and resample interval of a chart series.
type ChartType struct {
	Name     string
	Days     int
	Interval time.Duration
}

var (
	ChartToday    = ChartType{Name: "today", Days: 1, Interval: 30 * time.Minute}
	ChartWeek     = ChartType{Name: "week", Days: 7, Interval: 2 * time.Hour}
	ChartWeek2    = ChartType{Name: "week2", Days: 14, Interval: 3 * time.Hour}
	ChartMonth    = ChartType{Name: "month", Days: 30, Interval: 6 * time.Hour}
	ChartMonth3   = ChartType{Name: "month3", Days: 90, Interval: 24 * time.Hour}
	ChartHalfYear = ChartType{Name: "halfyear", Days: 183, Interval: 24 * time.Hour}
	ChartYear     = ChartType{Name: "year", Days: 365, Interval: 24 * time.Hour}
)

// Daily reports whether the resample interval is one day. Only daily
// charts carry per-bucket volume.
func (c ChartType) Daily() bool { return c.Interval == 24*time.Hour }

// ChartTypeByName returns the chart type for a wire name.
func ChartTypeByName(name string) (ChartType, bool) {
	for _, c := range []ChartType{ChartToday, ChartWeek, ChartWeek2, ChartMonth, ChartMonth3, ChartHalfYear, ChartYear} {
		if c.Name == name {
			return c, true
		}
	}
	return ChartType{}, false
}
