package database

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/komodo-sh/komodo/pkg/types"
)

// RecoverInterruptedUpdates finalizes updates left non-terminal by an
// unclean shutdown. The in-memory action states are gone, so nothing is
// actually running anymore; the documents just never got their terminal
// write. Runs once at startup, before the API accepts traffic.
func (c *Client) RecoverInterruptedUpdates(ctx context.Context) error {
	now := types.NowMS()
	interrupted := types.Log{
		Stage:   "shutdown",
		Stderr:  "operation was interrupted by a core restart before it completed",
		Success: false,
		StartTS: now,
		EndTS:   now,
	}

	res, err := c.Collections.Updates.UpdateMany(ctx,
		bson.M{"status": bson.M{"$ne": types.UpdateComplete}},
		bson.M{
			"$set": bson.M{
				"status":  types.UpdateComplete,
				"success": false,
				"end_ts":  now,
			},
			"$push": bson.M{"logs": interrupted},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to finalize interrupted updates: %w", err)
	}

	if res.ModifiedCount > 0 {
		slog.Warn("Finalized updates interrupted by previous shutdown",
			"count", res.ModifiedCount)
	}

	return nil
}

// EnsureSystemUsers creates the reserved principals that background
// components attribute their updates to. Idempotent.
func (c *Client) EnsureSystemUsers(ctx context.Context) error {
	for _, username := range []string{
		types.SystemUserSystem,
		types.SystemUserSync,
		types.SystemUserAutoRedeploy,
		types.SystemUserGithub,
		types.SystemUserAction,
	} {
		count, err := c.Collections.Users.CountDocuments(ctx, bson.M{"username": username})
		if err != nil {
			return fmt.Errorf("failed to check system user %s: %w", username, err)
		}
		if count > 0 {
			continue
		}
		user := types.User{
			Username: username,
			// System users cannot authenticate; they only attribute
			// background updates.
			Enabled:   false,
			Admin:     true,
			UpdatedAt: types.NowMS(),
		}
		if _, err := c.Collections.Users.InsertOne(ctx, user); err != nil {
			return fmt.Errorf("failed to create system user %s: %w", username, err)
		}
		slog.Info("Created system user", "username", username)
	}
	return nil
}

// EnsureInitAdmin bootstraps the first admin when the users collection holds
// no enabled users and credentials were configured. The admin gets an api
// key K-INIT-<username> whose secret is the configured password, so the
// operator can authenticate immediately and mint further keys.
func (c *Client) EnsureInitAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	count, err := c.Collections.Users.CountDocuments(ctx, bson.M{"enabled": true})
	if err != nil {
		return fmt.Errorf("failed to count enabled users: %w", err)
	}
	if count > 0 {
		return nil
	}
	user := types.User{
		Username:                username,
		Enabled:                 true,
		Admin:                   true,
		SuperAdmin:              true,
		CreateServerPermissions: true,
		CreateBuildPermissions:  true,
		UpdatedAt:               types.NowMS(),
	}
	res, err := c.Collections.Users.InsertOne(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to create init admin: %w", err)
	}
	userID, _ := res.InsertedID.(primitive.ObjectID)

	key := types.ApiKey{
		Name:      "init",
		UserID:    userID.Hex(),
		Key:       "K-INIT-" + username,
		Secret:    types.HashApiSecret(password),
		CreatedAt: types.NowMS(),
	}
	if _, err := c.Collections.ApiKeys.InsertOne(ctx, key); err != nil {
		return fmt.Errorf("failed to create init admin api key: %w", err)
	}

	slog.Info("Created initial admin user", "username", username, "api_key", key.Key)
	return nil
}
