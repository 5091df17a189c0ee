package output

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// FormatDuration renders d as H:MM:SS, with a .ffffff microsecond suffix when
// the fractional part is non-zero and a "N day(s), " prefix past 24 hours.
// Negative durations render as zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Microsecond)

	days := d / day
	d -= days * day
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	micros := d / time.Microsecond

	s := fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	if micros > 0 {
		s += fmt.Sprintf(".%06d", micros)
	}

	switch {
	case days == 1:
		s = "1 day, " + s
	case days > 1:
		s = fmt.Sprintf("%d days, %s", days, s)
	}

	return s
}
