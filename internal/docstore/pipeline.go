package docstore

import (
	"backend-trackbench/internal/aggregate"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func match(f aggregate.Filter) bson.D {
	from, to := f.Bounds()
	m := bson.D{{Key: "start_date_time", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lt", Value: to}}}}
	if f.Gender != "" {
		m = append(m, bson.E{Key: "gender", Value: f.Gender})
	}
	return m
}

// rawFind fetches the filtered laps in tracking id order.
func rawFind() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "tracking_id", Value: 1}})
}

func noneFind(p aggregate.Params) *options.FindOptions {
	sort := bson.D{{Key: "start_date_time", Value: -1}, {Key: "tracking_id", Value: 1}}
	if p.OrderBy == aggregate.OrderBest {
		sort = bson.D{{Key: "time_seconds", Value: 1}, {Key: "tracking_id", Value: 1}}
	}
	return options.Find().SetSort(sort).SetLimit(int64(p.Limit))
}

// allPipeline sums whole cents so equal distances tie, then orders ties by
// the user's first tracking id.
func allPipeline(f aggregate.Filter, p aggregate.Params) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match(f)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$username"},
			{Key: "km_cents", Value: bson.D{{Key: "$sum", Value: "$km_cents"}}},
			{Key: "time_total", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$toDouble", Value: "$time_seconds"}}}}},
			{Key: "rounds", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "first_id", Value: bson.D{{Key: "$min", Value: "$tracking_id"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "km_cents", Value: -1}, {Key: "first_id", Value: 1}}}},
		{{Key: "$limit", Value: int64(p.Limit)}},
		{{Key: "$set", Value: bson.D{{Key: "km_total", Value: bson.D{{Key: "$divide", Value: bson.A{"$km_cents", 100}}}}}}},
	}
}

// behindPipeline collects each user's laps, sorts them by start and folds
// them into sessions with $reduce. The accumulator holds the closed sessions
// and the open one; a lap joins the open session when the session's end is
// within tolerance seconds of the lap's start.
func behindPipeline(f aggregate.Filter, p aggregate.Params, tolerance float64) mongo.Pipeline {
	lapSeconds := bson.D{{Key: "$toDouble", Value: "$$this.time_seconds"}}

	// start difference in ms, converted to seconds, plus the open time
	gap := bson.D{{Key: "$add", Value: bson.A{
		bson.D{{Key: "$divide", Value: bson.A{
			bson.D{{Key: "$subtract", Value: bson.A{"$$value.cur.start_date_time", "$$this.start_date_time"}}},
			1000,
		}}},
		"$$value.cur.time",
	}}}
	joins := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$ne", Value: bson.A{"$$value.cur", nil}}},
		bson.D{{Key: "$lte", Value: bson.A{bson.D{{Key: "$abs", Value: gap}}, tolerance}}},
	}}}

	extend := bson.D{
		{Key: "done", Value: "$$value.done"},
		{Key: "cur", Value: bson.D{{Key: "$mergeObjects", Value: bson.A{
			"$$value.cur",
			bson.D{
				{Key: "time", Value: bson.D{{Key: "$add", Value: bson.A{"$$value.cur.time", lapSeconds}}}},
				{Key: "rounds", Value: bson.D{{Key: "$add", Value: bson.A{"$$value.cur.rounds", 1}}}},
			},
		}}}},
	}
	open := bson.D{
		{Key: "done", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{"$$value.cur", nil}}},
			"$$value.done",
			bson.D{{Key: "$concatArrays", Value: bson.A{"$$value.done", bson.A{"$$value.cur"}}}},
		}}}},
		{Key: "cur", Value: bson.D{
			{Key: "tracking_id", Value: "$$this.tracking_id"},
			{Key: "start_date_time", Value: "$$this.start_date_time"},
			{Key: "time", Value: lapSeconds},
			{Key: "km", Value: "$$this.km"},
			{Key: "event_name", Value: "$$this.event_name"},
			{Key: "username", Value: "$$this.username"},
			{Key: "rounds", Value: 1},
		}},
	}

	fold := bson.D{{Key: "$reduce", Value: bson.D{
		{Key: "input", Value: "$laps"},
		{Key: "initialValue", Value: bson.D{{Key: "done", Value: bson.A{}}, {Key: "cur", Value: nil}}},
		{Key: "in", Value: bson.D{{Key: "$cond", Value: bson.A{joins, extend, open}}}},
	}}}

	sort := bson.D{
		{Key: "start_date_time", Value: -1},
		{Key: "username", Value: 1},
		{Key: "tracking_id", Value: 1},
	}
	if p.OrderBy == aggregate.OrderBest {
		sort = bson.D{
			{Key: "rounds", Value: -1},
			{Key: "time", Value: 1},
			{Key: "username", Value: 1},
			{Key: "start_date_time", Value: 1},
			{Key: "tracking_id", Value: 1},
		}
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: match(f)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$username"},
			{Key: "laps", Value: bson.D{{Key: "$push", Value: bson.D{
				{Key: "tracking_id", Value: "$tracking_id"},
				{Key: "start_date_time", Value: "$start_date_time"},
				{Key: "time_seconds", Value: "$time_seconds"},
				{Key: "km", Value: "$km"},
				{Key: "event_name", Value: "$event_name"},
				{Key: "username", Value: "$username"},
			}}}},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "laps", Value: bson.D{{Key: "$sortArray", Value: bson.D{
			{Key: "input", Value: "$laps"},
			{Key: "sortBy", Value: bson.D{{Key: "start_date_time", Value: 1}, {Key: "tracking_id", Value: 1}}},
		}}}}}}},
		{{Key: "$project", Value: bson.D{{Key: "sessions", Value: bson.D{{Key: "$let", Value: bson.D{
			{Key: "vars", Value: bson.D{{Key: "acc", Value: fold}}},
			{Key: "in", Value: bson.D{{Key: "$concatArrays", Value: bson.A{"$$acc.done", bson.A{"$$acc.cur"}}}}},
		}}}}}}},
		{{Key: "$unwind", Value: "$sessions"}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$sessions"}}}},
		{{Key: "$sort", Value: sort}},
		{{Key: "$limit", Value: int64(p.Limit)}},
	}
}
