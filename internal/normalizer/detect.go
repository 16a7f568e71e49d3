package normalizer

import (
	"strings"

	"github.com/repolens/repolens/internal/model"
)

// Detection matches keyword tables against a repository's topics and
// description. At most three frameworks and three dependencies are kept per
// repository, table order decides which three.
const maxDetected = 3

type frameworkRule struct {
	keyword  string
	name     string
	language string
}

var frameworkRules = []frameworkRule{
	{"django", "Django", "Python"},
	{"flask", "Flask", "Python"},
	{"fastapi", "FastAPI", "Python"},
	{"react", "React", "JavaScript"},
	{"vue", "Vue", "JavaScript"},
	{"angular", "Angular", "JavaScript"},
	{"express", "Express", "JavaScript"},
	{"nextjs", "Next.js", "JavaScript"},
	{"nest", "NestJS", "TypeScript"},
	{"spring", "Spring", "Java"},
	{"laravel", "Laravel", "PHP"},
	{"rails", "Rails", "Ruby"},
	{"gin", "Gin", "Go"},
	{"fiber", "Fiber", "Go"},
	{"actix", "Actix", "Rust"},
	{"rocket", "Rocket", "Rust"},
	{"asp.net", "ASP.NET", "C#"},
	{"blazor", "Blazor", "C#"},
}

type dependencyRule struct {
	name      string
	ecosystem string
}

var dependencyRules = []dependencyRule{
	{"numpy", "Python"},
	{"pandas", "Python"},
	{"tensorflow", "Python"},
	{"pytorch", "Python"},
	{"scikit-learn", "Python"},
	{"matplotlib", "Python"},
	{"axios", "JavaScript"},
	{"lodash", "JavaScript"},
	{"moment", "JavaScript"},
	{"redux", "JavaScript"},
	{"webpack", "JavaScript"},
	{"babel", "JavaScript"},
	{"junit", "Java"},
	{"mockito", "Java"},
	{"hibernate", "Java"},
	{"tokio", "Rust"},
	{"serde", "Rust"},
	{"clap", "Rust"},
	{"gin", "Go"},
	{"gorm", "Go"},
	{"cobra", "Go"},
}

// DetectFrameworks scans topics and description for known framework keywords.
func DetectFrameworks(topics []string, description string) []model.Framework {
	text := detectionText(topics, description)
	var out []model.Framework
	for _, rule := range frameworkRules {
		if strings.Contains(text, rule.keyword) {
			out = append(out, model.Framework{Name: rule.name, Language: rule.language})
			if len(out) == maxDetected {
				break
			}
		}
	}
	return out
}

// DetectDependencies scans topics and description for known library names.
func DetectDependencies(topics []string, description string) []model.Dependency {
	text := detectionText(topics, description)
	var out []model.Dependency
	for _, rule := range dependencyRules {
		if strings.Contains(text, rule.name) {
			out = append(out, model.Dependency{Name: rule.name, Ecosystem: rule.ecosystem})
			if len(out) == maxDetected {
				break
			}
		}
	}
	return out
}

func detectionText(topics []string, description string) string {
	return strings.ToLower(strings.Join(topics, " ") + " " + description)
}
