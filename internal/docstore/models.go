package docstore

import (
	"time"

	"backend-trackbench/internal/aggregate"

	"github.com/shopspring/decimal"
)

const (
	VariantPipeline = "mongo_agg"
	VariantMemory   = "mongo_memory"
)

const (
	UsersCollection    = "users"
	TracksCollection   = "tracks"
	EventsCollection   = "events"
	TrackingCollection = "tracking"
)

// User is a document of the users collection. _id is the relational user_id.
type User struct {
	ID             string     `bson:"_id"`
	Username       *string    `bson:"username,omitempty"`
	FirstName      string     `bson:"first_name"`
	LastName       string     `bson:"last_name"`
	Gender         string     `bson:"gender"`
	Email          string     `bson:"email"`
	Birthday       *time.Time `bson:"birthday,omitempty"`
	HashedPassword string     `bson:"hashed_password"`
	Role           string     `bson:"role"`
}

type Track struct {
	ID       string  `bson:"_id"`
	Name     string  `bson:"name"`
	Distance float64 `bson:"distance"`
	Active   bool    `bson:"active"`
}

type Event struct {
	ID       string    `bson:"_id"`
	Name     string    `bson:"name"`
	StartsAt time.Time `bson:"starts_at"`
	EndsAt   time.Time `bson:"ends_at"`
}

// Tracking is one lap with its user, track and event denormalized into it.
// Time keeps the "HH:MM:SS" text, TimeSeconds the same value as a number.
// KmCents is Km in hundredths, which $sum adds exactly.
type Tracking struct {
	TrackingID    string    `bson:"tracking_id"`
	UserID        *string   `bson:"user_id,omitempty"`
	Username      *string   `bson:"username,omitempty"`
	Gender        string    `bson:"gender"`
	TrackID       string    `bson:"track_id"`
	Km            float64   `bson:"km"`
	KmCents       int64     `bson:"km_cents"`
	EventID       *string   `bson:"event_id,omitempty"`
	EventName     *string   `bson:"event_name,omitempty"`
	StartDateTime time.Time `bson:"start_date_time"`
	Time          string    `bson:"time"`
	TimeSeconds   int64     `bson:"time_seconds"`
}

// Record converts the document to the engine's row shape, leaving Time as
// the stored text.
func (d Tracking) Record() aggregate.TrackingRecord {
	return aggregate.TrackingRecord{
		TrackingID:    d.TrackingID,
		StartDateTime: d.StartDateTime,
		Time:          d.Time,
		Km:            d.Km,
		EventName:     d.EventName,
		Username:      d.Username,
	}
}

// Cents converts a track length in km to whole hundredths of a km.
func Cents(km float64) int64 {
	return decimal.NewFromFloat(km).Shift(2).Round(0).IntPart()
}
