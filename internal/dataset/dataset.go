// Package dataset generates one random set of users, tracks, events and laps
// and loads the same set into both backends.
package dataset

import (
	"math"
	"math/rand"
	"time"

	"backend-trackbench/internal/timeconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var Genders = []string{"male", "female", "other", "unknown"}

var ErrEmptyPool = errors.New("laps need at least one user, track and event")

type Sizes struct {
	Users     int
	Tracks    int
	Events    int
	Trackings int
}

type User struct {
	ID             uuid.UUID
	Username       string
	FirstName      string
	LastName       string
	Gender         string
	Email          string
	Birthday       time.Time
	HashedPassword string
}

type Track struct {
	ID     uuid.UUID
	Name   string
	Km     float64
	Active bool
}

type Event struct {
	ID       uuid.UUID
	Name     string
	StartsAt time.Time
	EndsAt   time.Time
}

// Tracking is one lap. Seconds is below one hour, so it fits a time of day.
type Tracking struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	TrackID       uuid.UUID
	EventID       uuid.UUID
	StartDateTime time.Time
	Seconds       int
}

func (t Tracking) Clock() string {
	return timeconv.Clock(t.Seconds)
}

type Dataset struct {
	Users     []User
	Tracks    []Track
	Events    []Event
	Trackings []Tracking
}

func (d *Dataset) Sizes() Sizes {
	return Sizes{Users: len(d.Users), Tracks: len(d.Tracks), Events: len(d.Events), Trackings: len(d.Trackings)}
}

// UserIDs lists the generated user ids in generation order.
func (d *Dataset) UserIDs() []uuid.UUID {
	out := make([]uuid.UUID, len(d.Users))
	for i, u := range d.Users {
		out[i] = u.ID
	}
	return out
}

// Generate builds a dataset from rng. The same seed and now give the same
// dataset, ids included. All users share one bcrypt hash.
func Generate(rng *rand.Rand, s Sizes, now time.Time) (*Dataset, error) {
	if s.Trackings > 0 && (s.Users < 1 || s.Tracks < 1 || s.Events < 1) {
		return nil, errors.Wrapf(ErrEmptyPool, "sizes %+v", s)
	}
	g := generator{rng: rng}

	hash, err := bcrypt.GenerateFromPassword([]byte(g.letters(32)), bcrypt.MinCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	d := &Dataset{
		Users:     make([]User, s.Users),
		Tracks:    make([]Track, s.Tracks),
		Events:    make([]Event, s.Events),
		Trackings: make([]Tracking, s.Trackings),
	}
	for i := range d.Users {
		d.Users[i] = User{
			ID:             g.id(),
			Username:       "user_" + g.letters(12),
			FirstName:      g.name(5),
			LastName:       g.name(7),
			Gender:         Genders[g.rng.Intn(len(Genders))],
			Email:          g.letters(12) + "@test.com",
			Birthday:       g.date(1970, 2010),
			HashedPassword: string(hash),
		}
	}
	for i := range d.Tracks {
		d.Tracks[i] = Track{
			ID:     g.id(),
			Name:   "Track_" + g.letters(4),
			Km:     math.Round((0.4+g.rng.Float64()*9.6)*100) / 100,
			Active: true,
		}
	}
	for i := range d.Events {
		d.Events[i] = Event{
			ID:       g.id(),
			Name:     "Event_" + g.letters(5),
			StartsAt: now.AddDate(0, 0, -g.rng.Intn(366)),
			EndsAt:   now.AddDate(0, 0, g.rng.Intn(366)),
		}
	}
	for i := range d.Trackings {
		d.Trackings[i] = Tracking{
			ID:            g.id(),
			UserID:        d.Users[g.rng.Intn(len(d.Users))].ID,
			TrackID:       d.Tracks[g.rng.Intn(len(d.Tracks))].ID,
			EventID:       d.Events[g.rng.Intn(len(d.Events))].ID,
			StartDateTime: now.AddDate(0, 0, -g.rng.Intn(731)),
			Seconds:       (10+g.rng.Intn(21))*60 + g.rng.Intn(60),
		}
	}
	return d, nil
}

type generator struct {
	rng *rand.Rand
}

func (g generator) id() uuid.UUID {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		// rand.Rand never fails to read
		panic(err)
	}
	return id
}

func (g generator) letters(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[g.rng.Intn(len(alphabet))]
	}
	return string(b)
}

func (g generator) name(n int) string {
	b := []byte(g.letters(n))
	b[0] -= 'a' - 'A'
	return string(b)
}

func (g generator) date(fromYear, toYear int) time.Time {
	from := time.Date(fromYear, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(toYear, 12, 31, 0, 0, 0, 0, time.UTC)
	days := int(to.Sub(from).Hours() / 24)
	return from.AddDate(0, 0, g.rng.Intn(days+1))
}
