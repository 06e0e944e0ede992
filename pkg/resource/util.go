package resource

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/komodo-sh/komodo/pkg/types"
)

func unmarshalPartial(raw []byte, out *types.Partial) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return types.NewValidationError("config", "must be a JSON object: "+err.Error())
	}
	return nil
}

func insertedObjectID(res *mongo.InsertOneResult) primitive.ObjectID {
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid
	}
	return primitive.NilObjectID
}
