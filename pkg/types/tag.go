package types

import "go.mongodb.org/mongo-driver/bson/primitive"

// Tag labels resources for filtering. Resources reference tags by id, so a
// rename does not touch tagged resources.
type Tag struct {
	ID    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name  string             `json:"name" bson:"name"`
	Owner string             `json:"owner,omitempty" bson:"owner,omitempty"`
	Color string             `json:"color,omitempty" bson:"color,omitempty"`
}

// Variable is a global key/value available to interpolation. Secret
// variables additionally have their values redacted from any persisted log.
type Variable struct {
	Name        string `json:"name" bson:"_id"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Value       string `json:"value" bson:"value"`
	IsSecret    bool   `json:"is_secret,omitempty" bson:"is_secret,omitempty"`
}
