// Data transfer objects for the GitHub REST API payloads the pipeline reads.
// Only the fields the normalizer consumes are mapped.

package githubapi

import "time"

type OwnerRef struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	AvatarUrl string `json:"avatar_url"`
	HtmlUrl   string `json:"html_url"`
}

type License struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type RepoItem struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Owner           OwnerRef  `json:"owner"`
	Description     string    `json:"description"`
	Language        string    `json:"language"`
	Topics          []string  `json:"topics"`
	StargazersCount int64     `json:"stargazers_count"`
	ForksCount      int64     `json:"forks_count"`
	WatchersCount   int64     `json:"watchers_count"`
	OpenIssuesCount int64     `json:"open_issues_count"`
	Size            int64     `json:"size"`
	License         *License  `json:"license"`
	Fork            bool      `json:"fork"`
	HtmlUrl         string    `json:"html_url"`
	Homepage        string    `json:"homepage"`
	DefaultBranch   string    `json:"default_branch"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	PushedAt        time.Time `json:"pushed_at"`
}

type SearchPage struct {
	TotalCount        int        `json:"total_count"`
	IncompleteResults bool       `json:"incomplete_results"`
	Items             []RepoItem `json:"items"`
	Rate              RateInfo   `json:"-"`
}

type UserProfile struct {
	Login       string    `json:"login"`
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Bio         string    `json:"bio"`
	Blog        string    `json:"blog"`
	AvatarUrl   string    `json:"avatar_url"`
	HtmlUrl     string    `json:"html_url"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"public_repos"`
	CreatedAt   time.Time `json:"created_at"`
}
