package yahoo

import "time"

// NYSE 交易日历：周一到周五，去掉法定假日和临时休市
// 只处理日期，时间部分一律按 UTC 零点

// 临时休市（国葬、飓风等）
var specialClosures = map[string]struct{}{
	"2004-06-11": {}, // Reagan
	"2007-01-02": {}, // Ford
	"2012-10-29": {}, // Sandy
	"2012-10-30": {},
	"2018-12-05": {}, // G.H.W. Bush
	"2025-01-09": {}, // Carter
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Sessions [start, end] 内的交易日，两端都按日期算
func Sessions(start, end time.Time) []time.Time {
	start, end = dateOf(start), dateOf(end)
	var out []time.Time
	cache := map[int]map[time.Time]struct{}{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		hs, ok := cache[d.Year()]
		if !ok {
			hs = holidays(d.Year())
			cache[d.Year()] = hs
		}
		if IsSession(d, hs) {
			out = append(out, d)
		}
	}
	return out
}

// IsSession hs 为 nil 时按 d 所在年份计算
func IsSession(d time.Time, hs map[time.Time]struct{}) bool {
	d = dateOf(d)
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if hs == nil {
		hs = holidays(d.Year())
	}
	if _, ok := hs[d]; ok {
		return false
	}
	_, closed := specialClosures[d.Format(time.DateOnly)]
	return !closed
}

func holidays(year int) map[time.Time]struct{} {
	hs := make(map[time.Time]struct{}, 12)
	add := func(d time.Time) { hs[d] = struct{}{} }

	// 元旦落在周六不补休
	if ny := date(year, time.January, 1); ny.Weekday() != time.Saturday {
		add(observed(ny))
	}
	if year >= 1998 {
		add(nthWeekday(year, time.January, time.Monday, 3)) // MLK
	}
	add(nthWeekday(year, time.February, time.Monday, 3)) // Washington's Birthday
	add(easter(year).AddDate(0, 0, -2))                  // Good Friday
	add(lastWeekday(year, time.May, time.Monday))        // Memorial Day
	if year >= 2022 {
		add(observed(date(year, time.June, 19))) // Juneteenth
	}
	add(observed(date(year, time.July, 4)))
	add(nthWeekday(year, time.September, time.Monday, 1))  // Labor Day
	add(nthWeekday(year, time.November, time.Thursday, 4)) // Thanksgiving
	add(observed(date(year, time.December, 25)))
	return hs
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// observed 周六提前到周五，周日顺延到周一
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(y int, m time.Month, wd time.Weekday, n int) time.Time {
	d := date(y, m, 1)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(y int, m time.Month, wd time.Weekday) time.Time {
	d := date(y, m+1, 1).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter 格里高利历复活节（Anonymous Gregorian algorithm）
func easter(y int) time.Time {
	a := y % 19
	b, c := y/100, y%100
	d, e := b/4, b%4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i, k := c/4, c%4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(y, time.Month(month), day)
}
