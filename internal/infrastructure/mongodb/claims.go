package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	pkgmongo "github.com/pharmatrace/trace-engine/pkg/mongodb"
)

// claimFilter matches a workflow document in status that holds no live claim
func claimFilter(id string, status any) bson.M {
	return bson.M{
		"_id":    id,
		"status": status,
		"$or": bson.A{
			bson.M{"claimedUntil": nil},
			bson.M{"claimedUntil": bson.M{"$lte": pkgmongo.Now()}},
		},
	}
}

func claimUpdate(ttl time.Duration) bson.M {
	return bson.M{"$set": bson.M{"claimedUntil": pkgmongo.Now().Add(ttl)}}
}

func unclaimUpdate() bson.M {
	return bson.M{"$unset": bson.M{"claimedUntil": ""}}
}

func returnAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
