package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/types"
)

const (
	headerApiKey    = "X-Api-Key"
	headerApiSecret = "X-Api-Secret"
)

// userKey is the context key the auth middleware stashes the resolved user
// under.
const userKey = "user"

// apiKeyAuth resolves api key credentials to a user before the handler runs.
func (s *Server) apiKeyAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		key := c.Request().Header.Get(headerApiKey)
		secret := c.Request().Header.Get(headerApiSecret)
		if key == "" || secret == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing api key credentials")
		}
		user, err := s.authenticate(c.Request().Context(), key, secret)
		if err != nil {
			return mapError(err)
		}
		c.Set(userKey, user)
		return next(c)
	}
}

// authenticate looks the key up, compares the hashed secret, and loads the
// owning user. Secrets are stored hashed; only digests are compared.
func (s *Server) authenticate(ctx context.Context, key, secret string) (*types.User, error) {
	var apiKey types.ApiKey
	err := s.db.Collections.ApiKeys.FindOne(ctx, bson.M{"key": key}).Decode(&apiKey)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("unknown api key: %w", types.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	digest := types.HashApiSecret(secret)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(apiKey.Secret)) != 1 {
		return nil, fmt.Errorf("api secret mismatch: %w", types.ErrUnauthenticated)
	}
	if apiKey.Expires != 0 && apiKey.Expires < types.NowMS() {
		return nil, fmt.Errorf("api key expired: %w", types.ErrUnauthenticated)
	}

	oid, err := database.ParseObjectID(apiKey.UserID)
	if err != nil {
		return nil, fmt.Errorf("api key carries malformed user id: %w", types.ErrUnauthenticated)
	}
	var user types.User
	if err := s.db.Collections.Users.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		return nil, fmt.Errorf("api key user missing: %w", types.ErrUnauthenticated)
	}
	if !user.Enabled {
		return nil, fmt.Errorf("user %s is disabled: %w", user.Username, types.ErrForbidden)
	}
	return &user, nil
}

// userFrom returns the user resolved by the auth middleware.
func userFrom(c *echo.Context) *types.User {
	user, _ := c.Get(userKey).(*types.User)
	return user
}
