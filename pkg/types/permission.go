package types

import "go.mongodb.org/mongo-driver/bson/primitive"

// PermissionLevel is an ordered access level. The ordering
// None < Read < Execute < Write is significant everywhere levels are
// compared; use Satisfies rather than comparing strings.
type PermissionLevel string

const (
	PermissionNone    PermissionLevel = "None"
	PermissionRead    PermissionLevel = "Read"
	PermissionExecute PermissionLevel = "Execute"
	PermissionWrite   PermissionLevel = "Write"
)

var permissionRank = map[PermissionLevel]int{
	PermissionNone:    0,
	PermissionRead:    1,
	PermissionExecute: 2,
	PermissionWrite:   3,
}

// Rank returns the numeric ordering of the level. Unknown levels rank as None.
func (l PermissionLevel) Rank() int {
	return permissionRank[l]
}

// Satisfies reports whether l grants at least the required level.
func (l PermissionLevel) Satisfies(required PermissionLevel) bool {
	return l.Rank() >= required.Rank()
}

// MaxPermission returns the higher of two levels.
func MaxPermission(a, b PermissionLevel) PermissionLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// UserTargetKind discriminates permission grantees.
type UserTargetKind string

const (
	UserTargetUser      UserTargetKind = "User"
	UserTargetUserGroup UserTargetKind = "UserGroup"
)

// UserTarget identifies the grantee of a permission: a single user or a
// user group (every member inherits the grant).
type UserTarget struct {
	Type UserTargetKind `json:"type" bson:"type"`
	ID   string         `json:"id" bson:"id"`
}

// Permission grants a level on one resource to one user or group. At most
// one document exists per (user_target, resource_target) pair.
type Permission struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserTarget     UserTarget         `json:"user_target" bson:"user_target"`
	ResourceTarget ResourceTarget     `json:"resource_target" bson:"resource_target"`
	Level          PermissionLevel    `json:"level" bson:"level"`
}
