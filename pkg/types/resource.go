// Package types defines the entities shared across the core: resources and
// their per-kind configs, updates, alerts, users, permissions, and the
// tagged-union request shapes that make up the wire contract.
package types

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ResourceKind discriminates the polymorphic resource types.
type ResourceKind string

// Resource kind constants. The string values appear verbatim in API payloads
// and in persisted documents, so they are part of the wire contract.
const (
	KindServer         ResourceKind = "Server"
	KindDeployment     ResourceKind = "Deployment"
	KindBuild          ResourceKind = "Build"
	KindRepo           ResourceKind = "Repo"
	KindProcedure      ResourceKind = "Procedure"
	KindAction         ResourceKind = "Action"
	KindStack          ResourceKind = "Stack"
	KindResourceSync   ResourceKind = "ResourceSync"
	KindBuilder        ResourceKind = "Builder"
	KindAlerter        ResourceKind = "Alerter"
	KindServerTemplate ResourceKind = "ServerTemplate"

	// KindSystem targets the core itself (variable updates, global ops).
	KindSystem ResourceKind = "System"
)

/// AllResourceKinds lists every user-declarable kind, in sync apply order:
// kinds that other kinds reference come first so cross-references resolve.
var AllResourceKinds = []ResourceKind{
	KindServer,
	KindBuilder,
	KindServerTemplate,
	KindBuild,
	KindDeployment,
	KindRepo,
	KindStack,
	KindAlerter,
	KindResourceSync,
	KindAction,
	KindProcedure,
}

// ResourceTarget points at a specific resource (or the system itself).
type ResourceTarget struct {
	Type ResourceKind `json:"type" bson:"type"`
	ID   string       `json:"id" bson:"id"`
}

// SystemTarget is the target used for operations not tied to one resource.
func SystemTarget() ResourceTarget {
	return ResourceTarget{Type: KindSystem, ID: "system"}
}

func (t ResourceTarget) String() string {
	return fmt.Sprintf("%s:%s", t.Type, t.ID)
}

// Resource is the generic shape shared by all kinds. Config carries the
// kind-specific declared configuration, Info carries server-written state
// that users cannot set directly (e.g. a build's last_built_at).
type Resource[C any, I any] struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	UpdatedAt   int64              `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
	// Tags holds tag ids (not names).
	Tags []string `json:"tags" bson:"tags"`
	// BasePermission applies to all users before specific grants.
	BasePermission PermissionLevel `json:"base_permission,omitempty" bson:"base_permission,omitempty"`
	Info           I               `json:"info" bson:"info"`
	Config         C               `json:"config" bson:"config"`
}

// Target returns the ResourceTarget pointing at this resource.
func (r *Resource[C, I]) Target(kind ResourceKind) ResourceTarget {
	return ResourceTarget{Type: kind, ID: r.ID.Hex()}
}

// NoInfo is the Info type for kinds that carry no server-written state.
type NoInfo struct{}

// ListItem is the projection returned by list queries. Info carries derived
// state, usually sourced from the monitoring caches rather than the database.
type ListItem[I any] struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
	Info I        `json:"info"`
}

// LooksLikeObjectID reports whether s parses as a 24-hex document id. The
// id-or-name lookup probe tries the id interpretation first when this is true.
func LooksLikeObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
