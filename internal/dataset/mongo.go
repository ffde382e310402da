package dataset

import (
	"context"

	"backend-trackbench/internal/docstore"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var collections = []string{
	docstore.TrackingCollection,
	docstore.UsersCollection,
	docstore.TracksCollection,
	docstore.EventsCollection,
}

// MongoLoader writes datasets as documents, denormalizing user, track and
// event into every lap.
type MongoLoader struct {
	db *mongo.Database
}

func NewMongoLoader(db *mongo.Database) *MongoLoader {
	return &MongoLoader{db: db}
}

func (l *MongoLoader) Clear(ctx context.Context) error {
	for _, name := range collections {
		if _, err := l.db.Collection(name).DeleteMany(ctx, bson.D{}); err != nil {
			return errors.Wrapf(err, "clear %s", name)
		}
	}
	return nil
}

func (l *MongoLoader) Load(ctx context.Context, d *Dataset) error {
	users, tracks, events, trackings := Documents(d)
	for _, c := range []struct {
		name string
		docs []any
	}{
		{docstore.UsersCollection, users},
		{docstore.TracksCollection, tracks},
		{docstore.EventsCollection, events},
		{docstore.TrackingCollection, trackings},
	} {
		if len(c.docs) == 0 {
			continue
		}
		if _, err := l.db.Collection(c.name).InsertMany(ctx, c.docs); err != nil {
			return errors.Wrapf(err, "insert %s", c.name)
		}
	}
	return nil
}

func (l *MongoLoader) Reload(ctx context.Context, d *Dataset) error {
	if err := l.Clear(ctx); err != nil {
		return err
	}
	return l.Load(ctx, d)
}

// Documents converts d into the four collections' documents.
func Documents(d *Dataset) (users, tracks, events, trackings []any) {
	byUser := make(map[string]docstore.User, len(d.Users))
	for _, u := range d.Users {
		birthday := u.Birthday
		doc := docstore.User{
			ID:             u.ID.String(),
			Username:       &u.Username,
			FirstName:      u.FirstName,
			LastName:       u.LastName,
			Gender:         u.Gender,
			Email:          u.Email,
			Birthday:       &birthday,
			HashedPassword: u.HashedPassword,
			Role:           "user",
		}
		byUser[doc.ID] = doc
		users = append(users, doc)
	}

	km := make(map[string]float64, len(d.Tracks))
	for _, t := range d.Tracks {
		km[t.ID.String()] = t.Km
		tracks = append(tracks, docstore.Track{ID: t.ID.String(), Name: t.Name, Distance: t.Km, Active: t.Active})
	}

	eventName := make(map[string]string, len(d.Events))
	for _, e := range d.Events {
		eventName[e.ID.String()] = e.Name
		events = append(events, docstore.Event{ID: e.ID.String(), Name: e.Name, StartsAt: e.StartsAt, EndsAt: e.EndsAt})
	}

	for _, t := range d.Trackings {
		user := byUser[t.UserID.String()]
		userID, eventID := user.ID, t.EventID.String()
		name := eventName[eventID]
		trackings = append(trackings, docstore.Tracking{
			TrackingID:    t.ID.String(),
			UserID:        &userID,
			Username:      user.Username,
			Gender:        user.Gender,
			TrackID:       t.TrackID.String(),
			Km:            km[t.TrackID.String()],
			KmCents:       docstore.Cents(km[t.TrackID.String()]),
			EventID:       &eventID,
			EventName:     &name,
			StartDateTime: t.StartDateTime,
			Time:          t.Clock(),
			TimeSeconds:   int64(t.Seconds),
		})
	}
	return users, tracks, events, trackings
}
