package journeycas

import (
	"fmt"
	"strings"
	"time"

	"github.com/unkn0wn-root/journeycas/store"
)

const (
	DefaultJourneyStatus = "Pending"
	DefaultSegmentStatus = "Scheduled"
)

// Journey is one booking: a passenger and an ordered list of flight segments.
// Version is stamped with the committed version on every write; the
// authoritative counter lives under the journey's version key.
type Journey struct {
	ID             string            `json:"id" msgpack:"id"`
	PassengerName  string            `json:"passengerName" msgpack:"passengerName"`
	PassengerEmail string            `json:"passengerEmail" msgpack:"passengerEmail"`
	BookingDate    time.Time         `json:"bookingDate" msgpack:"bookingDate"`
	Status         string            `json:"status" msgpack:"status"`
	TotalPrice     float64           `json:"totalPrice" msgpack:"totalPrice"`
	Segments       []Segment         `json:"segments" msgpack:"segments"`
	Metadata       map[string]string `json:"metadata" msgpack:"metadata"`
	Version        int64             `json:"version" msgpack:"version"`
}

// Segment is one flight inside a Journey. It has no version of its own.
type Segment struct {
	SegmentID     string    `json:"segmentId" msgpack:"segmentId"`
	Origin        string    `json:"origin" msgpack:"origin"`
	Destination   string    `json:"destination" msgpack:"destination"`
	DepartureTime time.Time `json:"departureTime" msgpack:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime" msgpack:"arrivalTime"`
	FlightNumber  string    `json:"flightNumber" msgpack:"flightNumber"`
	Carrier       string    `json:"carrier" msgpack:"carrier"`
	Status        string    `json:"status" msgpack:"status"`
	Price         float64   `json:"price" msgpack:"price"`
}

// Segment returns a pointer into j.Segments for id, or false.
func (j *Journey) Segment(id string) (*Segment, bool) {
	for i := range j.Segments {
		if j.Segments[i].SegmentID == id {
			return &j.Segments[i], true
		}
	}
	return nil, false
}

func (j *Journey) stampVersion(v int64) { j.Version = v }

// validate checks what Initialize needs before anything is written.
func (j *Journey) validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return store.Invalid("journey.id", "must not be blank")
	}
	seen := make(map[string]struct{}, len(j.Segments))
	for i, s := range j.Segments {
		if strings.TrimSpace(s.SegmentID) == "" {
			return store.Invalid(fmt.Sprintf("journey %q segment[%d].segmentId", j.ID, i), "must not be blank")
		}
		if _, dup := seen[s.SegmentID]; dup {
			return store.Invalid(fmt.Sprintf("journey %q segmentId", j.ID), fmt.Sprintf("duplicate %q", s.SegmentID))
		}
		seen[s.SegmentID] = struct{}{}
	}
	return nil
}

// withDefaults fills the statuses seed data may leave empty.
func (j Journey) withDefaults() Journey {
	if j.Status == "" {
		j.Status = DefaultJourneyStatus
	}
	if j.Metadata == nil {
		j.Metadata = map[string]string{}
	}
	segs := make([]Segment, len(j.Segments))
	copy(segs, j.Segments)
	for i := range segs {
		if segs[i].Status == "" {
			segs[i].Status = DefaultSegmentStatus
		}
	}
	j.Segments = segs
	return j
}
