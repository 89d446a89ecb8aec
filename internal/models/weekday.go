package models

import (
	"fmt"
	"time"
)

// Weekday counts from Monday = 0 to Sunday = 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{
	"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье",
}

func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// ParseWeekdayNumber maps the human numbering 1..7 (Monday..Sunday) to a Weekday.
func ParseWeekdayNumber(n int) (Weekday, error) {
	if n < 1 || n > 7 {
		return 0, fmt.Errorf("weekday must be between 1 and 7, got %d", n)
	}
	return Weekday(n - 1), nil
}

func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}
