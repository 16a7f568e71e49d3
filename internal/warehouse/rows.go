package warehouse

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/repolens/repolens/internal/aggregator"
	"github.com/repolens/repolens/internal/model"
)

// RepoRow is one repository flattened for BI queries. List-valued fields
// land as JSON columns so the relational schema stays one row per repo.
type RepoRow struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Name          string         `gorm:"column:name;type:varchar(255)"`
	FullName      string         `gorm:"column:full_name;type:varchar(255);index"`
	OwnerLogin    string         `gorm:"column:owner_login;type:varchar(255);index"`
	OwnerType     string         `gorm:"column:owner_type;type:varchar(32)"`
	Description   string         `gorm:"column:description;type:text"`
	Language      string         `gorm:"column:language;type:varchar(64);index"`
	Topics        datatypes.JSON `gorm:"column:topics"`
	Frameworks    datatypes.JSON `gorm:"column:frameworks"`
	Dependencies  datatypes.JSON `gorm:"column:dependencies"`
	Stars         int            `gorm:"column:stars;index"`
	Forks         int            `gorm:"column:forks"`
	Watchers      int            `gorm:"column:watchers"`
	OpenIssues    int            `gorm:"column:open_issues"`
	SizeKb        int            `gorm:"column:size_kb"`
	License       string         `gorm:"column:license;type:varchar(128)"`
	IsFork        bool           `gorm:"column:is_fork"`
	Location      string         `gorm:"column:location;type:varchar(128);index"`
	RepoCreatedAt time.Time      `gorm:"column:repo_created_at"`
	RepoUpdatedAt time.Time      `gorm:"column:repo_updated_at"`
	CollectedAt   time.Time      `gorm:"column:collected_at"`
	SyncedAt      time.Time      `gorm:"column:synced_at"`
}

func (RepoRow) TableName() string {
	return "repositories"
}

type OwnerRow struct {
	Login       string    `gorm:"column:login;primaryKey;type:varchar(255)"`
	Kind        string    `gorm:"column:kind;type:varchar(32)"`
	Name        string    `gorm:"column:name;type:varchar(255)"`
	Company     string    `gorm:"column:company;type:varchar(255)"`
	Location    string    `gorm:"column:location;type:varchar(255)"`
	City        string    `gorm:"column:city;type:varchar(128);index"`
	Followers   int       `gorm:"column:followers"`
	Following   int       `gorm:"column:following"`
	PublicRepos int       `gorm:"column:public_repos"`
	CollectedAt time.Time `gorm:"column:collected_at"`
	SyncedAt    time.Time `gorm:"column:synced_at"`
}

func (OwnerRow) TableName() string {
	return "owners"
}

type LanguageStatRow struct {
	Name         string    `gorm:"column:name;primaryKey;type:varchar(64)"`
	TotalRepos   int       `gorm:"column:total_repos"`
	TotalStars   int       `gorm:"column:total_stars"`
	TotalForks   int       `gorm:"column:total_forks"`
	AvgStars     float64   `gorm:"column:avg_stars"`
	UniqueOwners int       `gorm:"column:unique_owners"`
	SyncedAt     time.Time `gorm:"column:synced_at"`
}

func (LanguageStatRow) TableName() string {
	return "language_stats"
}

type LocationStatRow struct {
	Name         string         `gorm:"column:name;primaryKey;type:varchar(128)"`
	TotalRepos   int            `gorm:"column:total_repos"`
	TotalStars   int            `gorm:"column:total_stars"`
	AvgStars     float64        `gorm:"column:avg_stars"`
	TopLanguages datatypes.JSON `gorm:"column:top_languages"`
	UniqueOwners int            `gorm:"column:unique_owners"`
	SyncedAt     time.Time      `gorm:"column:synced_at"`
}

func (LocationStatRow) TableName() string {
	return "location_stats"
}

func repoRow(repo model.Repository, syncedAt time.Time) RepoRow {
	return RepoRow{
		ID:            repo.ID,
		Name:          repo.Name,
		FullName:      repo.FullName,
		OwnerLogin:    repo.OwnerLogin,
		OwnerType:     repo.OwnerType,
		Description:   model.TruncateString(repo.Description, 65535),
		Language:      repo.Language,
		Topics:        jsonColumn(repo.Topics),
		Frameworks:    jsonColumn(repo.Frameworks),
		Dependencies:  jsonColumn(repo.Dependencies),
		Stars:         repo.Stars,
		Forks:         repo.Forks,
		Watchers:      repo.Watchers,
		OpenIssues:    repo.OpenIssues,
		SizeKb:        repo.SizeKb,
		License:       repo.License,
		IsFork:        repo.IsFork,
		Location:      repo.Location,
		RepoCreatedAt: repo.CreatedAt,
		RepoUpdatedAt: repo.UpdatedAt,
		CollectedAt:   repo.CollectedAt,
		SyncedAt:      syncedAt,
	}
}

func ownerRow(owner model.Owner, syncedAt time.Time) OwnerRow {
	return OwnerRow{
		Login:       owner.Key(),
		Kind:        string(owner.Kind),
		Name:        owner.Name,
		Company:     owner.Company,
		Location:    owner.Location,
		City:        owner.City,
		Followers:   owner.Followers,
		Following:   owner.Following,
		PublicRepos: owner.PublicRepos,
		CollectedAt: owner.CollectedAt,
		SyncedAt:    syncedAt,
	}
}

func languageStatRow(stat aggregator.LanguageStat, syncedAt time.Time) LanguageStatRow {
	return LanguageStatRow{
		Name:         stat.Name,
		TotalRepos:   stat.TotalRepos,
		TotalStars:   stat.TotalStars,
		TotalForks:   stat.TotalForks,
		AvgStars:     stat.AvgStars,
		UniqueOwners: stat.UniqueOwners,
		SyncedAt:     syncedAt,
	}
}

func locationStatRow(stat aggregator.LocationStat, syncedAt time.Time) LocationStatRow {
	return LocationStatRow{
		Name:         stat.Name,
		TotalRepos:   stat.TotalRepos,
		TotalStars:   stat.TotalStars,
		AvgStars:     stat.AvgStars,
		TopLanguages: jsonColumn(stat.TopLanguages),
		UniqueOwners: stat.UniqueOwners,
		SyncedAt:     syncedAt,
	}
}

func jsonColumn(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	encoded, _ := json.Marshal(values)
	return datatypes.JSON(encoded)
}
