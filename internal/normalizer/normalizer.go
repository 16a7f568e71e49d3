// Package normalizer turns raw GitHub API payloads into canonical entity
// batches. Normalization happens exactly once, here: stores downstream write
// whatever this package emits without reshaping it.
package normalizer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/repolens/repolens/cfg"
	githubapi "github.com/repolens/repolens/internal/github_api"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/pkg/log"
)

const (
	maxTopicsPerRepo  = 5
	maxDescriptionLen = 500
)

// RecordSkip reports one malformed record dropped from a batch, with enough
// identity to find it again.
type RecordSkip struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

type Normalizer struct {
	Logger log.Logger
	Config *cfg.Config
}

func NewNormalizer(logger log.Logger, config *cfg.Config) (*Normalizer, error) {
	return &Normalizer{
		Logger: logger,
		Config: config,
	}, nil
}

// PageBatch converts one search results page into a batch. A malformed item
// is skipped with a reason; it never discards the rest of the page.
func (n *Normalizer) PageBatch(ctx context.Context, page *githubapi.SearchPage, language, location string, pageNo int, now time.Time) (*model.Batch, []RecordSkip) {
	batch := model.NewBatch(fmt.Sprintf("search:%s:page=%d", model.NormalizeKey(language), pageNo))
	var skips []RecordSkip
	for _, item := range page.Items {
		if err := n.addRepoItem(batch, item, location, now); err != nil {
			skip := RecordSkip{Key: itemKey(item), Reason: err.Error()}
			skips = append(skips, skip)
			n.Logger.Warn(ctx, "Skipping record %s: %s", skip.Key, skip.Reason)
		}
	}
	return batch, skips
}

// ProfileBatch converts one owner profile and that owner's repositories into
// a batch. This is where cities resolve, because only the profile payload
// carries a location string.
func (n *Normalizer) ProfileBatch(ctx context.Context, profile *githubapi.UserProfile, repos []githubapi.RepoItem, location string, now time.Time) (*model.Batch, []RecordSkip) {
	batch := model.NewBatch("profile:" + strings.ToLower(profile.Login))
	var skips []RecordSkip
	if profile.Login == "" {
		skip := RecordSkip{Key: "profile", Reason: "owner login missing"}
		n.Logger.Warn(ctx, "Skipping record %s: %s", skip.Key, skip.Reason)
		return batch, append(skips, skip)
	}

	owner := model.Owner{
		Login:       profile.Login,
		ID:          profile.ID,
		Kind:        ownerKind(profile.Type),
		Name:        profile.Name,
		Company:     profile.Company,
		Location:    profile.Location,
		Bio:         model.TruncateString(profile.Bio, maxDescriptionLen),
		Blog:        profile.Blog,
		AvatarUrl:   profile.AvatarUrl,
		Url:         profile.HtmlUrl,
		Followers:   profile.Followers,
		Following:   profile.Following,
		PublicRepos: profile.PublicRepos,
		CreatedAt:   profile.CreatedAt,
		CollectedAt: now,
	}
	if city, ok := ResolveCity(profile.Location); ok {
		owner.City = city.Name
		batch.AddCity(city)
		batch.Relate(model.RelLocatedIn, owner.Ref(), city.Ref())
	}
	batch.AddOwner(owner)

	for _, item := range repos {
		if err := n.addRepoItem(batch, item, location, now); err != nil {
			skip := RecordSkip{Key: itemKey(item), Reason: err.Error()}
			skips = append(skips, skip)
			n.Logger.Warn(ctx, "Skipping record %s: %s", skip.Key, skip.Reason)
			continue
		}
		contributor := model.Contributor{
			RepoID:        item.ID,
			Login:         owner.Key(),
			Contributions: int(item.StargazersCount),
		}
		batch.AddContributor(contributor)
		repoRef := model.Ref{Entity: model.EntityRepository, Key: strconv.FormatInt(item.ID, 10)}
		batch.Relate(model.RelContributesTo, contributor.Ref(), repoRef)
		batch.Relate(model.RelHasContributor, owner.Ref(), contributor.Ref())
	}
	return batch, skips
}

// addRepoItem expands one raw repository item into its entities and
// relationships. The batch stays closed: every relationship endpoint is added
// before the relationship itself, and absent attributes produce no
// placeholder entities.
func (n *Normalizer) addRepoItem(batch *model.Batch, item githubapi.RepoItem, location string, now time.Time) error {
	if item.ID <= 0 {
		return fmt.Errorf("repository id missing")
	}
	if item.FullName == "" {
		return fmt.Errorf("repository full name missing")
	}
	if item.Owner.Login == "" {
		return fmt.Errorf("owner login missing")
	}

	frameworks := DetectFrameworks(item.Topics, item.Description)
	dependencies := DetectDependencies(item.Topics, item.Description)

	repo := model.Repository{
		ID:            item.ID,
		Name:          item.Name,
		FullName:      item.FullName,
		OwnerLogin:    strings.ToLower(item.Owner.Login),
		OwnerType:     item.Owner.Type,
		Description:   model.TruncateString(item.Description, maxDescriptionLen),
		Language:      model.NormalizeKey(item.Language),
		Stars:         int(item.StargazersCount),
		Forks:         int(item.ForksCount),
		Watchers:      int(item.WatchersCount),
		OpenIssues:    int(item.OpenIssuesCount),
		SizeKb:        int(item.Size),
		IsFork:        item.Fork,
		Url:           item.HtmlUrl,
		Homepage:      item.Homepage,
		DefaultBranch: item.DefaultBranch,
		Location:      normalizeLocation(location),
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
		PushedAt:      item.PushedAt,
		CollectedAt:   now,
	}
	if item.License != nil {
		repo.License = item.License.Name
	}
	for _, raw := range item.Topics {
		if key := model.NormalizeKey(raw); key != "" {
			repo.Topics = append(repo.Topics, key)
		}
	}
	for _, fw := range frameworks {
		repo.Frameworks = append(repo.Frameworks, fw.Name)
	}
	for _, dep := range dependencies {
		repo.Dependencies = append(repo.Dependencies, dep.Name)
	}
	batch.AddRepository(repo)

	owner := model.Owner{
		Login:       item.Owner.Login,
		ID:          item.Owner.ID,
		Kind:        ownerKind(item.Owner.Type),
		AvatarUrl:   item.Owner.AvatarUrl,
		Url:         item.Owner.HtmlUrl,
		CollectedAt: now,
	}
	batch.AddOwner(owner)
	batch.Relate(model.RelOwnedBy, repo.Ref(), owner.Ref())

	if repo.Language != "" {
		lang := model.Language{Name: repo.Language}
		batch.AddLanguage(lang)
		batch.Relate(model.RelUses, repo.Ref(), lang.Ref())
	}

	for i, key := range repo.Topics {
		if i == maxTopicsPerRepo {
			break
		}
		topic := model.Topic{Name: key}
		batch.AddTopic(topic)
		batch.Relate(model.RelHasTopic, repo.Ref(), topic.Ref())
	}

	for _, fw := range frameworks {
		batch.AddFramework(fw)
		batch.Relate(model.RelUsesFramework, repo.Ref(), fw.Ref())
	}
	for _, dep := range dependencies {
		batch.AddDependency(dep)
		batch.Relate(model.RelDependsOn, repo.Ref(), dep.Ref())
	}

	// The owner counts as the repository's principal contributor even before
	// any profile pass runs.
	contributor := model.Contributor{
		RepoID:        item.ID,
		Login:         owner.Key(),
		Contributions: int(item.StargazersCount),
	}
	batch.AddContributor(contributor)
	batch.Relate(model.RelContributesTo, contributor.Ref(), repo.Ref())
	batch.Relate(model.RelHasContributor, owner.Ref(), contributor.Ref())
	return nil
}

func ownerKind(raw string) model.OwnerKind {
	if raw == string(model.OwnerOrganization) {
		return model.OwnerOrganization
	}
	return model.OwnerUser
}

func normalizeLocation(location string) string {
	if key := model.NormalizeKey(location); key != "" {
		return key
	}
	return "global"
}

func itemKey(item githubapi.RepoItem) string {
	if item.FullName != "" {
		return item.FullName
	}
	if item.ID > 0 {
		return strconv.FormatInt(item.ID, 10)
	}
	return "unknown"
}
