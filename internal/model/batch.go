package model

// Batch is the unit that flows from the normalizer to the writer: every
// entity extracted from one source page or profile, plus the relationships
// between them. Add methods deduplicate by key, so a page of fifty Python
// repositories still yields a single Language entity.
type Batch struct {
	Source        string         `json:"source" bson:"source"`
	Repositories  []Repository   `json:"repositories" bson:"repositories"`
	Owners        []Owner        `json:"owners" bson:"owners"`
	Languages     []Language     `json:"languages" bson:"languages"`
	Topics        []Topic        `json:"topics" bson:"topics"`
	Frameworks    []Framework    `json:"frameworks" bson:"frameworks"`
	Dependencies  []Dependency   `json:"dependencies" bson:"dependencies"`
	Contributors  []Contributor  `json:"contributors" bson:"contributors"`
	Cities        []City         `json:"cities" bson:"cities"`
	Relationships []Relationship `json:"relationships" bson:"relationships"`
}

func NewBatch(source string) *Batch {
	return &Batch{Source: source}
}

func (b *Batch) AddRepository(r Repository) {
	for _, existing := range b.Repositories {
		if existing.ID == r.ID {
			return
		}
	}
	b.Repositories = append(b.Repositories, r)
}

func (b *Batch) AddOwner(o Owner) {
	for _, existing := range b.Owners {
		if existing.Key() == o.Key() {
			return
		}
	}
	b.Owners = append(b.Owners, o)
}

func (b *Batch) AddLanguage(l Language) {
	for _, existing := range b.Languages {
		if existing.Key() == l.Key() {
			return
		}
	}
	b.Languages = append(b.Languages, l)
}

func (b *Batch) AddTopic(t Topic) {
	for _, existing := range b.Topics {
		if existing.Key() == t.Key() {
			return
		}
	}
	b.Topics = append(b.Topics, t)
}

func (b *Batch) AddFramework(f Framework) {
	for _, existing := range b.Frameworks {
		if existing.Key() == f.Key() {
			return
		}
	}
	b.Frameworks = append(b.Frameworks, f)
}

func (b *Batch) AddDependency(d Dependency) {
	for _, existing := range b.Dependencies {
		if existing.Key() == d.Key() {
			return
		}
	}
	b.Dependencies = append(b.Dependencies, d)
}

func (b *Batch) AddContributor(c Contributor) {
	for _, existing := range b.Contributors {
		if existing.Key() == c.Key() {
			return
		}
	}
	b.Contributors = append(b.Contributors, c)
}

func (b *Batch) AddCity(c City) {
	for _, existing := range b.Cities {
		if existing.Key() == c.Key() {
			return
		}
	}
	b.Cities = append(b.Cities, c)
}

// Relate records an edge between two refs already present in the batch.
// Duplicate edges collapse to one.
func (b *Batch) Relate(kind RelKind, from, to Ref) {
	for _, r := range b.Relationships {
		if r.Kind == kind && r.From == from && r.To == to {
			return
		}
	}
	b.Relationships = append(b.Relationships, Relationship{Kind: kind, From: from, To: to})
}

func (b *Batch) EntityCount() int {
	return len(b.Repositories) + len(b.Owners) + len(b.Languages) + len(b.Topics) +
		len(b.Frameworks) + len(b.Dependencies) + len(b.Contributors) + len(b.Cities)
}

func (b *Batch) RelCount() int {
	return len(b.Relationships)
}

func (b *Batch) IsEmpty() bool {
	return b.EntityCount() == 0
}
