package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPaginate struct {
	limit int64
	page  int64
}

func newMongoPaginate(limit, page int) *mongoPaginate {
	if limit < 1 {
		limit = 1
	}
	if page < 1 {
		page = 1
	}
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}

// sequenceRange builds the filter for messages of a simulation with from <= sequence <= to.
// to <= 0 leaves the range open ended.
func sequenceRange(simulationID string, from, to int64) bson.M {
	seq := bson.M{"$gte": from}
	if to > 0 {
		seq["$lte"] = to
	}
	return bson.M{"simulationID": simulationID, "sequence": seq}
}
