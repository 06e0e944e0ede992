package types

import (
	"crypto/sha256"
	"encoding/hex"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an authenticated principal. System users (username prefixed with
// the reserved names below) are synthesized at startup and cannot log in.
type User struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username string             `json:"username" bson:"username"`
	Enabled  bool               `json:"enabled" bson:"enabled"`
	// Admin bypasses all permission checks.
	Admin bool `json:"admin" bson:"admin"`
	// SuperAdmin may manage other admins. Implies Admin.
	SuperAdmin bool `json:"super_admin,omitempty" bson:"super_admin,omitempty"`
	// CreateServerPermissions grants Write on servers the user creates.
	CreateServerPermissions bool `json:"create_server_permissions,omitempty" bson:"create_server_permissions,omitempty"`
	// CreateBuildPermissions grants Write on builds the user creates.
	CreateBuildPermissions bool `json:"create_build_permissions,omitempty" bson:"create_build_permissions,omitempty"`
	// All maps resource kind to a base level granted on every resource of
	// that kind, before per-resource permissions are considered.
	All map[ResourceKind]PermissionLevel `json:"all,omitempty" bson:"all,omitempty"`
	// RecentlyViewed holds the most recent resources the user opened,
	// newest first, pruned to the cap on insert.
	RecentlyViewed []ResourceTarget `json:"recently_viewed,omitempty" bson:"recently_viewed,omitempty"`
	LastUpdateView int64            `json:"last_update_view,omitempty" bson:"last_update_view,omitempty"`
	UpdatedAt      int64            `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// Reserved usernames of the system users synthesized at startup. Updates
// produced by background components are attributed to these principals.
const (
	SystemUserSystem       = "system"
	SystemUserSync         = "sync"
	SystemUserAutoRedeploy = "auto redeploy"
	SystemUserGithub       = "github"
	SystemUserAction       = "action"
)

// RecentlyViewedCap bounds User.RecentlyViewed.
const RecentlyViewedCap = 10

// UserGroup bundles users so permissions can be granted once for the group.
type UserGroup struct {
	ID        primitive.ObjectID               `json:"id" bson:"_id,omitempty"`
	Name      string                           `json:"name" bson:"name"`
	Users     []string                         `json:"users" bson:"users"`
	All       map[ResourceKind]PermissionLevel `json:"all,omitempty" bson:"all,omitempty"`
	UpdatedAt int64                            `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// HashApiSecret returns the hex sha256 digest under which api key secrets
// are stored. Plaintext secrets never touch the database.
func HashApiSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// ApiKey authenticates programmatic access. Secret is stored hashed; the
// plaintext is returned exactly once, on creation.
type ApiKey struct {
	Name string `json:"name" bson:"name"`
	// UserID is the owning user; requests authenticate as that user.
	UserID    string `json:"user_id" bson:"user_id"`
	Key       string `json:"key" bson:"key"`
	Secret    string `json:"-" bson:"secret"`
	CreatedAt int64  `json:"created_at" bson:"created_at"`
	// Expires is a ms timestamp; zero means never.
	Expires int64 `json:"expires,omitempty" bson:"expires,omitempty"`
}
