package models

import (
	"fmt"
	"time"
)

const (
	// SlotDuration is the length of every appointment.
	SlotDuration = time.Hour

	DateLayout      = "02.01.2006"
	DateTimeLayout  = "02.01.2006 15:04"
	ISODateLayout   = "2006-01-02"
	StorageLayout   = "2006-01-02 15:04:05"
	confirmationFmt = "02-01-2006 15-04"
)

type Appointment struct {
	ID        int64     `db:"id" json:"id"`
	ServiceID int64     `db:"service_id" json:"service_id"`
	ClientID  int64     `db:"client_id" json:"client_id"`
	WorkerID  int64     `db:"worker_id" json:"worker_id"`
	Date      time.Time `db:"date" json:"date"`
}

// AppointmentView is an appointment joined with display data.
type AppointmentView struct {
	ID           int64     `db:"id" json:"id"`
	ClientID     int64     `db:"client_id" json:"client_id"`
	ClientName   string    `db:"client_name" json:"client_name"`
	ClientChatID int64     `db:"chat_id" json:"-"`
	WorkerID     int64     `db:"worker_id" json:"worker_id"`
	WorkerName   string    `db:"worker_name" json:"worker_name"`
	ServiceID    int64     `db:"service_id" json:"service_id"`
	ServiceName  string    `db:"service_name" json:"service_name"`
	Price        int64     `db:"price" json:"price"`
	Date         time.Time `db:"date" json:"date"`
}

// WorkerStatistics aggregates appointments of one worker over a period.
type WorkerStatistics struct {
	WorkerName    string `db:"worker_name" json:"worker_name"`
	TotalPrice    int64  `db:"total_price" json:"total_price"`
	TotalServices int64  `db:"total_services" json:"total_services"`
	TotalPayout   int64  `db:"total_payout" json:"total_payout"`
}

// Slot is a bookable hour. It is derived and never stored.
type Slot struct {
	Start time.Time `json:"start"`
}

func (s Slot) String() string {
	return s.Start.Format("15:04")
}

// Reservation is the outcome of a successful booking.
type Reservation struct {
	Appointment Appointment `json:"appointment"`
	WorkerName  string      `json:"worker_name"`
	ServiceName string      `json:"service_name"`
	Price       int64       `json:"price"`
}

func (r Reservation) Confirmation() string {
	return fmt.Sprintf("Вы успешно записались на %s", r.Appointment.Date.Format(confirmationFmt))
}

// Participant selects which side of an appointment a display name refers to.
type Participant string

const (
	ParticipantWorker Participant = "worker"
	ParticipantClient Participant = "client"
)

func ParseParticipant(s string) (Participant, error) {
	switch Participant(s) {
	case ParticipantWorker, ParticipantClient:
		return Participant(s), nil
	}
	switch s {
	case "работник", "мастер":
		return ParticipantWorker, nil
	case "клиент":
		return ParticipantClient, nil
	}
	return "", fmt.Errorf("unknown participant %q", s)
}
