package docstore

import (
	"testing"

	"backend-trackbench/internal/aggregate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func stageNames(p []bson.D) []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s[0].Key
	}
	return out
}

func TestMatchGender(t *testing.T) {
	m := match(filter)
	require.Len(t, m, 2)
	assert.Equal(t, "gender", m[1].Key)
	assert.Equal(t, "male", m[1].Value)

	m = match(aggregate.Filter{StartPeriod: t0, EndPeriod: t0})
	require.Len(t, m, 1)
	bounds := m[0].Value.(bson.D)
	assert.Equal(t, "$gte", bounds[0].Key)
	assert.Equal(t, "$lt", bounds[1].Key)
}

func TestAllPipeline(t *testing.T) {
	p := allPipeline(filter, aggregate.Params{Mode: aggregate.ModeAll, OrderBy: aggregate.OrderStart, Limit: 25})
	assert.Equal(t, []string{"$match", "$group", "$sort", "$limit", "$set"}, stageNames(p))
	assert.Equal(t, int64(25), p[3][0].Value)

	group := p[1][0].Value.(bson.D)
	assert.Equal(t, "km_cents", group[1].Key)
	assert.Equal(t, bson.D{{Key: "$sum", Value: "$km_cents"}}, group[1].Value)

	// ties on the summed cents fall back to the first tracking id
	sort := p[2][0].Value.(bson.D)
	assert.Equal(t, bson.D{{Key: "km_cents", Value: -1}, {Key: "first_id", Value: 1}}, sort)
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(530), Cents(5.3))
	assert.Equal(t, int64(530), Cents(3.1)+Cents(2.2))
	assert.Equal(t, int64(1), Cents(0.01))
	assert.Equal(t, int64(960), Cents(9.6))
}

func TestBehindPipeline(t *testing.T) {
	p := behindPipeline(filter, aggregate.Params{Mode: aggregate.ModeBehind, OrderBy: aggregate.OrderBest, Limit: 5}, 1)
	assert.Equal(t,
		[]string{"$match", "$group", "$project", "$project", "$unwind", "$replaceRoot", "$sort", "$limit"},
		stageNames(p))

	sort := p[6][0].Value.(bson.D)
	assert.Equal(t, "rounds", sort[0].Key)
	assert.Equal(t, -1, sort[0].Value)
	assert.Equal(t, "time", sort[1].Key)

	p = behindPipeline(filter, aggregate.Params{Mode: aggregate.ModeBehind, OrderBy: aggregate.OrderStart, Limit: 5}, 1)
	sort = p[6][0].Value.(bson.D)
	assert.Equal(t, "start_date_time", sort[0].Key)
	assert.Equal(t, -1, sort[0].Value)
}

func TestNoneFind(t *testing.T) {
	opts := noneFind(aggregate.Params{Mode: aggregate.ModeNone, OrderBy: aggregate.OrderBest, Limit: 7})
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(7), *opts.Limit)
	assert.Equal(t, bson.D{{Key: "time_seconds", Value: 1}, {Key: "tracking_id", Value: 1}}, opts.Sort)

	opts = noneFind(aggregate.Params{Mode: aggregate.ModeNone, OrderBy: aggregate.OrderStart, Limit: 7})
	assert.Equal(t, bson.D{{Key: "start_date_time", Value: -1}, {Key: "tracking_id", Value: 1}}, opts.Sort)
}
