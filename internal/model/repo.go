package model

import (
	"strconv"
	"time"
)

// Repository is the canonical repository entity. The GitHub numeric id is the
// identity key across every store, so re-ingesting the same repository always
// lands on the same node and document.
type Repository struct {
	ID            int64     `json:"id" bson:"id"`
	Name          string    `json:"name" bson:"name"`
	FullName      string    `json:"full_name" bson:"full_name"`
	OwnerLogin    string    `json:"owner_login" bson:"owner_login"`
	OwnerType     string    `json:"owner_type" bson:"owner_type"`
	Description   string    `json:"description" bson:"description"`
	Language      string    `json:"language" bson:"language"`
	Topics        []string  `json:"topics" bson:"topics"`
	Frameworks    []string  `json:"frameworks" bson:"frameworks"`
	Dependencies  []string  `json:"dependencies" bson:"dependencies"`
	Stars         int       `json:"stars" bson:"stars"`
	Forks         int       `json:"forks" bson:"forks"`
	Watchers      int       `json:"watchers" bson:"watchers"`
	OpenIssues    int       `json:"open_issues" bson:"open_issues"`
	SizeKb        int       `json:"size_kb" bson:"size_kb"`
	License       string    `json:"license" bson:"license"`
	IsFork        bool      `json:"is_fork" bson:"is_fork"`
	Url           string    `json:"url" bson:"url"`
	Homepage      string    `json:"homepage" bson:"homepage"`
	DefaultBranch string    `json:"default_branch" bson:"default_branch"`
	Location      string    `json:"location" bson:"location"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
	PushedAt      time.Time `json:"pushed_at" bson:"pushed_at"`
	CollectedAt   time.Time `json:"collected_at" bson:"collected_at"`
}

func (r Repository) Key() string {
	return strconv.FormatInt(r.ID, 10)
}

func (r Repository) Ref() Ref {
	return Ref{Entity: EntityRepository, Key: r.Key()}
}
