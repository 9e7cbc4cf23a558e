package domain

import "time"

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "AVAILABLE"
	SeatStatusLocked    SeatStatus = "LOCKED"
	SeatStatusPurchased SeatStatus = "PURCHASED"
)

type Seat struct {
	SeatMappingID int64      `json:"seatMappingId"`
	X             float64    `json:"x"`
	Y             float64    `json:"y"`
	Grade         string     `json:"grade"`
	Row           string     `json:"row"`
	Col           string     `json:"col"`
	Status        SeatStatus `json:"status"`
}

func (s *Seat) Selectable() bool {
	return s.Status == SeatStatusAvailable
}

type SeatSelection struct {
	SeatMappingID int64  `json:"seatMappingId"`
	Price         int64  `json:"price"`
	Grade         string `json:"grade"`
	Row           string `json:"row"`
	Col           string `json:"col"`
}

// SeatLock is the client-side view of a time-boxed server hold. The
// server never reports its TTL directly, so the client mirrors it with
// its own clock to warn and expire preemptively.
type SeatLock struct {
	ScheduleID       int64     `json:"eventScheduleId"`
	SeatMappingIDs   []int64   `json:"seatMappingIds"`
	ReservationLimit int       `json:"reservationLimit"`
	AcquiredAt       time.Time `json:"acquiredAt"`
	TTL              time.Duration
}

func (l *SeatLock) ExpiresAt() time.Time {
	return l.AcquiredAt.Add(l.TTL)
}

func (l *SeatLock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt())
}

func (l *SeatLock) Remaining(now time.Time) time.Duration {
	if l.Expired(now) {
		return 0
	}
	return l.ExpiresAt().Sub(now)
}
