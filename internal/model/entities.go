package model

import "fmt"

// Language name is stored pre-normalized by the normalizer.
type Language struct {
	Name string `json:"name" bson:"name"`
}

func (l Language) Key() string { return l.Name }
func (l Language) Ref() Ref    { return Ref{Entity: EntityLanguage, Key: l.Key()} }

type Topic struct {
	Name string `json:"name" bson:"name"`
}

func (t Topic) Key() string { return t.Name }
func (t Topic) Ref() Ref    { return Ref{Entity: EntityTopic, Key: t.Key()} }

// Framework is detected from repository topics and description, tied to the
// primary language it usually belongs to.
type Framework struct {
	Name     string `json:"name" bson:"name"`
	Language string `json:"language" bson:"language"`
}

func (f Framework) Key() string { return f.Name }
func (f Framework) Ref() Ref    { return Ref{Entity: EntityFramework, Key: f.Key()} }

type Dependency struct {
	Name      string `json:"name" bson:"name"`
	Ecosystem string `json:"ecosystem" bson:"ecosystem"`
}

func (d Dependency) Key() string { return d.Name + "@" + d.Ecosystem }
func (d Dependency) Ref() Ref    { return Ref{Entity: EntityDependency, Key: d.Key()} }

// Contributor is an owner's involvement in one repository.
type Contributor struct {
	RepoID        int64  `json:"repo_id" bson:"repo_id"`
	Login         string `json:"login" bson:"login"`
	Contributions int    `json:"contributions" bson:"contributions"`
}

func (c Contributor) Key() string { return fmt.Sprintf("%d#%s", c.RepoID, c.Login) }
func (c Contributor) Ref() Ref    { return Ref{Entity: EntityContributor, Key: c.Key()} }

// City carries the coordinates used by the location map rollup.
type City struct {
	Name    string  `json:"name" bson:"name"`
	Country string  `json:"country" bson:"country"`
	Lat     float64 `json:"lat" bson:"lat"`
	Lon     float64 `json:"lon" bson:"lon"`
}

func (c City) Key() string { return c.Name }
func (c City) Ref() Ref    { return Ref{Entity: EntityCity, Key: c.Key()} }
