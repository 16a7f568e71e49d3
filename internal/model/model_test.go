package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Python", "python"},
		{" python ", "python"},
		{"Jupyter Notebook", "jupyter-notebook"},
		{"C++", "c++"},
		{"  Objective   C ", "objective-c"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeKey(tc.raw), "raw=%q", tc.raw)
	}
}

func TestNormalizeKeyIsStable(t *testing.T) {
	variants := []string{"Machine Learning", "machine  learning", " MACHINE LEARNING "}
	for _, v := range variants {
		assert.Equal(t, "machine-learning", NormalizeKey(v))
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "", TruncateString("", 5))
}

func TestEntityKeys(t *testing.T) {
	t.Run("repository key is the source id", func(t *testing.T) {
		r := Repository{ID: 1296269, FullName: "octocat/Hello-World"}
		assert.Equal(t, "1296269", r.Key())
		assert.Equal(t, Ref{Entity: EntityRepository, Key: "1296269"}, r.Ref())
	})

	t.Run("owner key is the lowercased login", func(t *testing.T) {
		o := Owner{Login: "OctoCat", Kind: OwnerUser}
		assert.Equal(t, "octocat", o.Key())
		assert.Equal(t, EntityUser, o.Entity())

		org := Owner{Login: "GitHub", Kind: OwnerOrganization}
		assert.Equal(t, EntityOrganization, org.Entity())
	})

	t.Run("dependency key includes ecosystem", func(t *testing.T) {
		d := Dependency{Name: "flask", Ecosystem: "pypi"}
		assert.Equal(t, "flask@pypi", d.Key())
	})

	t.Run("contributor key is repo scoped", func(t *testing.T) {
		c := Contributor{RepoID: 42, Login: "octocat"}
		assert.Equal(t, "42#octocat", c.Key())
	})
}

func TestBatchDedup(t *testing.T) {
	b := NewBatch("search:python:page=1")

	b.AddLanguage(Language{Name: "python"})
	b.AddLanguage(Language{Name: "python"})
	assert.Len(t, b.Languages, 1)

	b.AddOwner(Owner{Login: "alice"})
	b.AddOwner(Owner{Login: "Alice"})
	assert.Len(t, b.Owners, 1)

	b.AddRepository(Repository{ID: 1})
	b.AddRepository(Repository{ID: 1})
	b.AddRepository(Repository{ID: 2})
	assert.Len(t, b.Repositories, 2)

	from := Repository{ID: 1}.Ref()
	to := Language{Name: "python"}.Ref()
	b.Relate(RelUses, from, to)
	b.Relate(RelUses, from, to)
	assert.Equal(t, 1, b.RelCount())

	assert.Equal(t, 4, b.EntityCount())
	assert.False(t, b.IsEmpty())
	assert.True(t, NewBatch("empty").IsEmpty())
}
