// Package model defines the canonical entities and relationships the
// pipeline produces. Raw GitHub payloads are normalized into these types
// exactly once; every store writes what this package describes.
package model

// Entity is a canonical entity label. It doubles as the graph node label.
type Entity string

const (
	EntityRepository   Entity = "Repository"
	EntityUser         Entity = "User"
	EntityOrganization Entity = "Organization"
	EntityLanguage     Entity = "Language"
	EntityFramework    Entity = "Framework"
	EntityTopic        Entity = "Topic"
	EntityDependency   Entity = "Dependency"
	EntityContributor  Entity = "Contributor"
	EntityCity         Entity = "City"
)

// RelKind is a canonical relationship type. It doubles as the graph edge type.
type RelKind string

const (
	RelOwnedBy        RelKind = "OWNED_BY"
	RelUses           RelKind = "USES"
	RelHasTopic       RelKind = "HAS_TOPIC"
	RelDependsOn      RelKind = "DEPENDS_ON"
	RelUsesFramework  RelKind = "USES_FRAMEWORK"
	RelContributesTo  RelKind = "CONTRIBUTES_TO"
	RelHasContributor RelKind = "HAS_CONTRIBUTOR"
	RelLocatedIn      RelKind = "LOCATED_IN"
)

// Ref identifies one entity by label and key.
type Ref struct {
	Entity Entity `json:"entity" bson:"entity"`
	Key    string `json:"key" bson:"key"`
}

// Relationship connects two entities that exist in the same batch. The writer
// upserts both endpoints before any relationship, so a relationship can never
// dangle.
type Relationship struct {
	Kind RelKind `json:"kind" bson:"kind"`
	From Ref     `json:"from" bson:"from"`
	To   Ref     `json:"to" bson:"to"`
}
