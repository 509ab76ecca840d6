package scoring

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/rfpwatch/rfp"
)

// Weights are the maximum points of each positive category.
type Weights struct {
	Institution     int `yaml:"institution" json:"institution"`
	Budget          int `yaml:"budget" json:"budget"`
	Technology      int `yaml:"technology" json:"technology"`
	ProjectType     int `yaml:"project_type" json:"project_type"`
	TechKeywords    int `yaml:"tech_keywords" json:"tech_keywords"`
	InstitutionSize int `yaml:"institution_size" json:"institution_size"`
	Geography       int `yaml:"geography" json:"geography"`
}

// Total is the maximum possible score.
func (w Weights) Total() int {
	return w.Institution + w.Budget + w.Technology + w.ProjectType + w.TechKeywords + w.InstitutionSize + w.Geography
}

// KeywordSet is a bounded-presence category: Saturation distinct matches
// earn the full weight.
type KeywordSet struct {
	Terms      []string `yaml:"terms" json:"terms"`
	Saturation int      `yaml:"saturation" json:"saturation"`
}

// Config is the scoring rubric.
type Config struct {
	Weights        Weights        `yaml:"weights"`
	RedFlagPenalty int            `yaml:"red_flag_penalty"`
	Thresholds     rfp.Thresholds `yaml:"thresholds"`

	InstitutionTerms []string `yaml:"institution_terms"`
	PreferredCMS     []string `yaml:"preferred_cms"`
	AcceptableCMS    []string `yaml:"acceptable_cms"`
	PreferredStates  []string `yaml:"preferred_states"`
	RedFlags         []string `yaml:"red_flags"`

	ProjectTypes    KeywordSet `yaml:"project_types"`
	TechKeywords    KeywordSet `yaml:"tech_keywords"`
	InstitutionSize KeywordSet `yaml:"institution_size"`

	// Budget thresholds in dollars.
	PreferredBudget  float64 `yaml:"preferred_budget"`
	AcceptableBudget float64 `yaml:"acceptable_budget"`
	// Amounts outside [MinAmount, MaxAmount] are not budgets.
	MinAmount float64 `yaml:"min_amount"`
	MaxAmount float64 `yaml:"max_amount"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the rubric used when nothing is configured.
func DefaultConfig() Config {
	var c Config
	c.defaults()
	return c
}

func (c *Config) defaults() {
	// Institution, budget, technology and any project-type match alone
	// clear the default HIGH threshold.
	if c.Weights == (Weights{}) {
		c.Weights = Weights{
			Institution:     25,
			Budget:          25,
			Technology:      20,
			ProjectType:     15,
			TechKeywords:    5,
			InstitutionSize: 5,
			Geography:       5,
		}
	}
	if c.RedFlagPenalty <= 0 {
		c.RedFlagPenalty = 30
	}
	if c.Thresholds == (rfp.Thresholds{}) {
		c.Thresholds = rfp.DefaultThresholds()
	}
	if len(c.InstitutionTerms) == 0 {
		c.InstitutionTerms = []string{
			"community college", "state university", "university", "college",
			"higher education", "campus", "provost", "registrar", "admissions",
		}
	}
	if len(c.PreferredCMS) == 0 {
		c.PreferredCMS = []string{"drupal", "wordpress"}
	}
	if len(c.AcceptableCMS) == 0 {
		c.AcceptableCMS = []string{"joomla", "sitecore", "adobe experience manager", "cascade cms", "omni cms", "terminalfour", "ektron", "squarespace"}
	}
	if len(c.PreferredStates) == 0 {
		c.PreferredStates = []string{"TX", "CA", "NY", "FL", "IL", "PA", "OH", "GA", "NC", "MA"}
	}
	if len(c.RedFlags) == 0 {
		c.RedFlags = []string{
			"logo design only", "print only", "staffing services", "hardware only",
			"janitorial", "construction services", "translation services", "no website",
		}
	}
	if len(c.ProjectTypes.Terms) == 0 {
		c.ProjectTypes.Terms = []string{
			"website redesign", "redesign", "web development", "website development",
			"migration", "accessibility", "responsive", "user experience",
			"information architecture", "content strategy",
		}
	}
	if c.ProjectTypes.Saturation <= 0 {
		c.ProjectTypes.Saturation = 2
	}
	if len(c.TechKeywords.Terms) == 0 {
		c.TechKeywords.Terms = []string{
			"php", "javascript", "html", "css", "api", "apis", "integration",
			"hosting", "seo", "analytics", "wcag", "section 508", "single sign-on",
		}
	}
	if c.TechKeywords.Saturation <= 0 {
		c.TechKeywords.Saturation = 4
	}
	if len(c.InstitutionSize.Terms) == 0 {
		c.InstitutionSize.Terms = []string{"students", "faculty", "staff", "enrollment", "multi-campus", "departments"}
	}
	if c.InstitutionSize.Saturation <= 0 {
		c.InstitutionSize.Saturation = 2
	}
	if c.PreferredBudget <= 0 {
		c.PreferredBudget = 100_000
	}
	if c.AcceptableBudget <= 0 {
		c.AcceptableBudget = 50_000
	}
	if c.MinAmount <= 0 {
		c.MinAmount = 1_000
	}
	if c.MaxAmount <= 0 {
		c.MaxAmount = 50_000_000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks the rubric, with defaults filled in, for contradictions.
func (c Config) Validate() error {
	c.defaults()
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Weights.Total() <= 0 {
		return fmt.Errorf("scoring: weights must sum to a positive total")
	}
	if c.AcceptableBudget > c.PreferredBudget {
		return fmt.Errorf("scoring: acceptable budget %.0f exceeds preferred %.0f", c.AcceptableBudget, c.PreferredBudget)
	}
	if c.MinAmount >= c.MaxAmount {
		return fmt.Errorf("scoring: min amount %.0f must be below max amount %.0f", c.MinAmount, c.MaxAmount)
	}
	return nil
}
