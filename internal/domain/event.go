package domain

// Partition is a named seating tier with its own price and remaining
// seat count.
type Partition struct {
	Name           string `json:"partitionName"`
	RemainingSeats int64  `json:"remainingSeats"`
	Price          int64  `json:"price"`
}

// EventSchedule is one bookable date+round instance of an event. The
// selection becomes read-only once a seat lock has been requested for it.
type EventSchedule struct {
	EventID    string               `json:"eventId"`
	ScheduleID int64                `json:"eventScheduleId"`
	Date       string               `json:"date"`
	Round      int                  `json:"round"`
	Partitions map[string]Partition `json:"partitions"`
}

type GradePrice struct {
	Grade string `json:"grade"`
	Price int64  `json:"price"`
}

type EventSummary struct {
	StageImg         string       `json:"stageImg"`
	ReservationLimit int          `json:"reservationLimit"`
	PosterURL        string       `json:"posterUrl"`
	GradePriceList   []GradePrice `json:"gradePriceList"`
}

type GradeRemaining struct {
	Grade          string `json:"grade"`
	RemainingCount int64  `json:"remainingCount"`
}
