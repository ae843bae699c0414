package share

import (
	"fmt"
	"strings"
	"time"
)

const reportDateLayout = "02/01/2006"

// WorkingDays counts Monday to Friday dates from start to end, both inclusive.
// Only the calendar dates matter; a start after end counts zero.
func WorkingDays(start, end time.Time) int {
	day := dateOf(start)
	last := dateOf(end)

	count := 0
	for !day.After(last) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
		day = day.AddDate(0, 0, 1)
	}
	return count
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WorkingDaysReport formats the working days counter posted by the cron route.
func WorkingDaysReport(start, today time.Time) string {
	lines := []string{
		"📅 **Báo cáo ngày làm việc**",
		"📆 Ngày bắt đầu: " + start.Format(reportDateLayout),
		"📆 Hôm nay: " + today.Format(reportDateLayout),
		fmt.Sprintf("💼 Tổng số ngày làm việc: **%d ngày**", WorkingDays(start, today)),
	}
	return strings.Join(lines, "\n")
}
