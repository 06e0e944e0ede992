package resource

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/komodo-sh/komodo/pkg/types"
)

// findBySelector decodes the document matching an id-or-name selector into
// out. When the selector parses as an object id, the id interpretation is
// probed first; a name that happens to look like an id still resolves if no
// document has that id.
func findBySelector(ctx context.Context, col *mongo.Collection, selector string, out any) error {
	if selector == "" {
		return types.NewValidationError("id", "empty selector")
	}

	if oid, err := primitive.ObjectIDFromHex(selector); err == nil {
		err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("failed to query %s: %w", col.Name(), err)
		}
	}

	err := col.FindOne(ctx, bson.M{"name": selector}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %q: %w", col.Name(), selector, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", col.Name(), err)
	}
	return nil
}

// selectorFilter returns the filter matching an id-or-name selector for
// update and delete operations that don't need the document first.
func selectorFilter(selector string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(selector); err == nil {
		return bson.M{"$or": bson.A{
			bson.M{"_id": oid},
			bson.M{"name": selector},
		}}
	}
	return bson.M{"name": selector}
}
