package aggregator

import (
	"math"
	"sort"

	"github.com/repolens/repolens/internal/model"
)

// Canonical metric names. The query service resolves request paths to these.
const (
	MetricLanguages          = "languages"
	MetricLocationsCompare   = "locations:compare"
	MetricLocationsMap       = "locations:map"
	MetricRankingsStars      = "rankings:stars"
	MetricRankingsForks      = "rankings:forks"
	MetricTrendingTopics     = "trending:topics"
	MetricTrendingFrameworks = "trending:frameworks"
	MetricOwners             = "owners"
)

// topN caps ranked metric values. Rollup documents are not capped.
const topN = 10

type LanguageStat struct {
	Name         string  `json:"name" bson:"name"`
	TotalRepos   int     `json:"total_repos" bson:"total_repos"`
	TotalStars   int     `json:"total_stars" bson:"total_stars"`
	TotalForks   int     `json:"total_forks" bson:"total_forks"`
	AvgStars     float64 `json:"avg_stars" bson:"avg_stars"`
	UniqueOwners int     `json:"unique_owners" bson:"unique_owners"`
}

type LocationStat struct {
	Name         string   `json:"name" bson:"name"`
	TotalRepos   int      `json:"total_repos" bson:"total_repos"`
	TotalStars   int      `json:"total_stars" bson:"total_stars"`
	AvgStars     float64  `json:"avg_stars" bson:"avg_stars"`
	TopLanguages []string `json:"top_languages" bson:"top_languages"`
	UniqueOwners int      `json:"unique_owners" bson:"unique_owners"`
}

// MapPoint is one plottable location. Locations without known coordinates
// are left off the map metric but stay in the compare metric.
type MapPoint struct {
	Location   string  `json:"location" bson:"location"`
	Latitude   float64 `json:"latitude" bson:"latitude"`
	Longitude  float64 `json:"longitude" bson:"longitude"`
	Repos      int     `json:"repos" bson:"repos"`
	AvgStars   float64 `json:"avg_stars" bson:"avg_stars"`
	TotalStars int     `json:"total_stars" bson:"total_stars"`
}

type RankedRepo struct {
	FullName string `json:"full_name" bson:"full_name"`
	Language string `json:"language" bson:"language"`
	Stars    int    `json:"stars" bson:"stars"`
	Forks    int    `json:"forks" bson:"forks"`
}

type TopicStat struct {
	Name             string   `json:"name" bson:"name"`
	TotalRepos       int      `json:"total_repos" bson:"total_repos"`
	TotalStars       int      `json:"total_stars" bson:"total_stars"`
	RelatedLanguages []string `json:"related_languages" bson:"related_languages"`
}

type FrameworkStat struct {
	Name       string `json:"name" bson:"name"`
	Language   string `json:"language" bson:"language"`
	TotalRepos int    `json:"total_repos" bson:"total_repos"`
	TotalStars int    `json:"total_stars" bson:"total_stars"`
}

type OwnerStat struct {
	Login      string   `json:"login" bson:"login"`
	TotalRepos int      `json:"total_repos" bson:"total_repos"`
	TotalStars int      `json:"total_stars" bson:"total_stars"`
	TotalForks int      `json:"total_forks" bson:"total_forks"`
	Languages  []string `json:"languages" bson:"languages"`
}

// locationCoords maps normalized location filters to plotting coordinates.
var locationCoords = map[string]struct{ Lat, Lon float64 }{
	"tunisia":   {33.8869, 9.5375},
	"france":    {46.2276, 2.2137},
	"usa":       {37.0902, -95.7129},
	"germany":   {51.1657, 10.4515},
	"japan":     {36.2048, 138.2529},
	"uk":        {55.3781, -3.4360},
	"canada":    {56.1304, -106.3468},
	"india":     {20.5937, 78.9629},
	"brazil":    {-14.2350, -51.9253},
	"australia": {-25.2744, 133.7751},
}

// ComputeLanguageStats folds a repository snapshot into per-language
// aggregates. Pure function, shared by the cache refresh and the warehouse
// sync so both surfaces report identical numbers.
func ComputeLanguageStats(repos []model.Repository) []LanguageStat {
	type acc struct {
		stat   LanguageStat
		owners map[string]bool
	}
	byName := map[string]*acc{}
	for _, repo := range repos {
		name := repo.Language
		if name == "" {
			name = "unknown"
		}
		a, ok := byName[name]
		if !ok {
			a = &acc{stat: LanguageStat{Name: name}, owners: map[string]bool{}}
			byName[name] = a
		}
		a.stat.TotalRepos++
		a.stat.TotalStars += repo.Stars
		a.stat.TotalForks += repo.Forks
		a.owners[repo.OwnerLogin] = true
	}

	out := make([]LanguageStat, 0, len(byName))
	for _, a := range byName {
		a.stat.AvgStars = round2(float64(a.stat.TotalStars) / float64(a.stat.TotalRepos))
		a.stat.UniqueOwners = len(a.owners)
		out = append(out, a.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRepos != out[j].TotalRepos {
			return out[i].TotalRepos > out[j].TotalRepos
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ComputeLocationStats folds a repository snapshot into per-location
// aggregates, the compare metric and the warehouse location rows both come
// from it.
func ComputeLocationStats(repos []model.Repository) []LocationStat {
	type acc struct {
		stat      LocationStat
		languages map[string]int
		owners    map[string]bool
	}
	byName := map[string]*acc{}
	for _, repo := range repos {
		name := repo.Location
		if name == "" {
			name = "global"
		}
		a, ok := byName[name]
		if !ok {
			a = &acc{stat: LocationStat{Name: name}, languages: map[string]int{}, owners: map[string]bool{}}
			byName[name] = a
		}
		a.stat.TotalRepos++
		a.stat.TotalStars += repo.Stars
		if repo.Language != "" {
			a.languages[repo.Language]++
		}
		a.owners[repo.OwnerLogin] = true
	}

	out := make([]LocationStat, 0, len(byName))
	for _, a := range byName {
		a.stat.AvgStars = round2(float64(a.stat.TotalStars) / float64(a.stat.TotalRepos))
		a.stat.TopLanguages = topKeys(a.languages, 3)
		a.stat.UniqueOwners = len(a.owners)
		out = append(out, a.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRepos != out[j].TotalRepos {
			return out[i].TotalRepos > out[j].TotalRepos
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func mapPoints(locations []LocationStat) []MapPoint {
	var out []MapPoint
	for _, loc := range locations {
		coords, ok := locationCoords[loc.Name]
		if !ok {
			continue
		}
		out = append(out, MapPoint{
			Location:   loc.Name,
			Latitude:   coords.Lat,
			Longitude:  coords.Lon,
			Repos:      loc.TotalRepos,
			AvgStars:   loc.AvgStars,
			TotalStars: loc.TotalStars,
		})
	}
	return out
}

func computeRankings(repos []model.Repository, byForks bool) []RankedRepo {
	ranked := make([]RankedRepo, 0, len(repos))
	for _, repo := range repos {
		ranked = append(ranked, RankedRepo{
			FullName: repo.FullName,
			Language: repo.Language,
			Stars:    repo.Stars,
			Forks:    repo.Forks,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i].Stars, ranked[j].Stars
		if byForks {
			a, b = ranked[i].Forks, ranked[j].Forks
		}
		if a != b {
			return a > b
		}
		return ranked[i].FullName < ranked[j].FullName
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func computeTopics(repos []model.Repository) []TopicStat {
	type acc struct {
		stat      TopicStat
		languages map[string]bool
	}
	byName := map[string]*acc{}
	for _, repo := range repos {
		for _, topic := range repo.Topics {
			a, ok := byName[topic]
			if !ok {
				a = &acc{stat: TopicStat{Name: topic}, languages: map[string]bool{}}
				byName[topic] = a
			}
			a.stat.TotalRepos++
			a.stat.TotalStars += repo.Stars
			if repo.Language != "" {
				a.languages[repo.Language] = true
			}
		}
	}

	out := make([]TopicStat, 0, len(byName))
	for _, a := range byName {
		a.stat.RelatedLanguages = sortedKeys(a.languages)
		out = append(out, a.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRepos != out[j].TotalRepos {
			return out[i].TotalRepos > out[j].TotalRepos
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func computeFrameworks(repos []model.Repository) []FrameworkStat {
	byName := map[string]*FrameworkStat{}
	for _, repo := range repos {
		for _, fw := range repo.Frameworks {
			stat, ok := byName[fw]
			if !ok {
				stat = &FrameworkStat{Name: fw, Language: repo.Language}
				byName[fw] = stat
			}
			stat.TotalRepos++
			stat.TotalStars += repo.Stars
		}
	}

	out := make([]FrameworkStat, 0, len(byName))
	for _, stat := range byName {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalRepos != out[j].TotalRepos {
			return out[i].TotalRepos > out[j].TotalRepos
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func computeOwners(repos []model.Repository) []OwnerStat {
	type acc struct {
		stat      OwnerStat
		languages map[string]bool
	}
	byLogin := map[string]*acc{}
	for _, repo := range repos {
		a, ok := byLogin[repo.OwnerLogin]
		if !ok {
			a = &acc{stat: OwnerStat{Login: repo.OwnerLogin}, languages: map[string]bool{}}
			byLogin[repo.OwnerLogin] = a
		}
		a.stat.TotalRepos++
		a.stat.TotalStars += repo.Stars
		a.stat.TotalForks += repo.Forks
		if repo.Language != "" {
			a.languages[repo.Language] = true
		}
	}

	out := make([]OwnerStat, 0, len(byLogin))
	for _, a := range byLogin {
		a.stat.Languages = sortedKeys(a.languages)
		out = append(out, a.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalStars != out[j].TotalStars {
			return out[i].TotalStars > out[j].TotalStars
		}
		return out[i].Login < out[j].Login
	})
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func topKeys(counts map[string]int, n int) []string {
	type kv struct {
		key   string
		count int
	}
	pairs := make([]kv, 0, len(counts))
	for k, c := range counts {
		pairs = append(pairs, kv{k, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].key < pairs[j].key
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.key)
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
