package models

import "time"

type Worker struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// WorkingInterval is the working time of one worker on one weekday.
type WorkingInterval struct {
	WorkerID int64   `db:"worker_id" json:"worker_id"`
	Weekday  Weekday `db:"day_week" json:"weekday"`
	Start    Clock   `db:"time_start" json:"start"`
	End      Clock   `db:"time_end" json:"end"`
}

// Contains reports whether the time of day c falls into [Start, End).
func (wi WorkingInterval) Contains(c Clock) bool {
	return wi.Start <= c && c < wi.End
}

// WorkersOverview splits workers by their state at a given instant.
type WorkersOverview struct {
	At          time.Time `json:"at"`
	WorkingFree []Worker  `json:"working_free"`
	WorkingBusy []Worker  `json:"working_busy"`
	NotWorking  []Worker  `json:"not_working"`
}
