package scheduling

import (
	"fmt"
	"time"
)

var spanishWeekdays = [...]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FriendlyTime renders a timestamp the way customer-facing messages
// spell it, in the salon's timezone: "viernes 5 de septiembre a las 10:00".
func FriendlyTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%s %d de %s a las %02d:%02d",
		spanishWeekdays[t.Weekday()], t.Day(), spanishMonths[t.Month()-1], t.Hour(), t.Minute())
}

// FriendlyDate is FriendlyTime without the clock part.
func FriendlyDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%s %d de %s",
		spanishWeekdays[t.Weekday()], t.Day(), spanishMonths[t.Month()-1])
}

// WeekdayName returns the Spanish name of a weekday.
func WeekdayName(d time.Weekday) string {
	return spanishWeekdays[d]
}
