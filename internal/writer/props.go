package writer

import (
	"time"

	"github.com/repolens/repolens/internal/model"
)

// Graph node properties stay flat. Times go over the wire as RFC3339 strings
// and zero times are omitted instead of stored as year one.

func repoProps(r model.Repository) map[string]interface{} {
	props := map[string]interface{}{
		"name":           r.Name,
		"full_name":      r.FullName,
		"owner_login":    r.OwnerLogin,
		"description":    model.TruncateString(r.Description, 200),
		"language":       r.Language,
		"stars":          r.Stars,
		"forks":          r.Forks,
		"watchers":       r.Watchers,
		"open_issues":    r.OpenIssues,
		"size_kb":        r.SizeKb,
		"license":        r.License,
		"is_fork":        r.IsFork,
		"url":            r.Url,
		"default_branch": r.DefaultBranch,
		"location":       r.Location,
	}
	setTime(props, "created_at", r.CreatedAt)
	setTime(props, "updated_at", r.UpdatedAt)
	setTime(props, "pushed_at", r.PushedAt)
	setTime(props, "collected_at", r.CollectedAt)
	return props
}

func ownerProps(o model.Owner) map[string]interface{} {
	props := map[string]interface{}{
		"login":        o.Login,
		"kind":         string(o.Kind),
		"name":         o.Name,
		"company":      o.Company,
		"location":     o.Location,
		"city":         o.City,
		"blog":         o.Blog,
		"avatar_url":   o.AvatarUrl,
		"url":          o.Url,
		"followers":    o.Followers,
		"following":    o.Following,
		"public_repos": o.PublicRepos,
	}
	setTime(props, "created_at", o.CreatedAt)
	setTime(props, "collected_at", o.CollectedAt)
	return props
}

func languageProps(l model.Language) map[string]interface{} {
	return map[string]interface{}{"name": l.Name}
}

func topicProps(t model.Topic) map[string]interface{} {
	return map[string]interface{}{"name": t.Name}
}

func frameworkProps(f model.Framework) map[string]interface{} {
	return map[string]interface{}{"name": f.Name, "language": f.Language}
}

func dependencyProps(d model.Dependency) map[string]interface{} {
	return map[string]interface{}{"name": d.Name, "ecosystem": d.Ecosystem}
}

func contributorProps(c model.Contributor) map[string]interface{} {
	return map[string]interface{}{
		"repo_id":       c.RepoID,
		"login":         c.Login,
		"contributions": c.Contributions,
	}
}

func cityProps(c model.City) map[string]interface{} {
	return map[string]interface{}{
		"name":    c.Name,
		"country": c.Country,
		"lat":     c.Lat,
		"lon":     c.Lon,
	}
}

func setTime(props map[string]interface{}, key string, t time.Time) {
	if !t.IsZero() {
		props[key] = t.UTC().Format(time.RFC3339)
	}
}
