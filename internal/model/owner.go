package model

import (
	"strings"
	"time"
)

type OwnerKind string

const (
	OwnerUser         OwnerKind = "User"
	OwnerOrganization OwnerKind = "Organization"
)

// Owner is a user or organization that owns or contributes to repositories.
// The lowercased login is the identity key.
type Owner struct {
	Login       string    `json:"login" bson:"login"`
	ID          int64     `json:"id" bson:"id"`
	Kind        OwnerKind `json:"kind" bson:"kind"`
	Name        string    `json:"name" bson:"name"`
	Company     string    `json:"company" bson:"company"`
	Location    string    `json:"location" bson:"location"`
	City        string    `json:"city" bson:"city"`
	Bio         string    `json:"bio" bson:"bio"`
	Blog        string    `json:"blog" bson:"blog"`
	AvatarUrl   string    `json:"avatar_url" bson:"avatar_url"`
	Url         string    `json:"url" bson:"url"`
	Followers   int       `json:"followers" bson:"followers"`
	Following   int       `json:"following" bson:"following"`
	PublicRepos int       `json:"public_repos" bson:"public_repos"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	CollectedAt time.Time `json:"collected_at" bson:"collected_at"`
}

func (o Owner) Key() string {
	return strings.ToLower(o.Login)
}

func (o Owner) Entity() Entity {
	if o.Kind == OwnerOrganization {
		return EntityOrganization
	}
	return EntityUser
}

func (o Owner) Ref() Ref {
	return Ref{Entity: o.Entity(), Key: o.Key()}
}
