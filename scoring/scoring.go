// CLAUDE:SUMMARY Deterministic weighted rubric: institution, budget, CMS, project type, keywords, size, geography, red flags; panic-safe.
// Package scoring rates an opportunity's corpus against a weighted rubric.
//
// Score is a pure function of the text and the configuration. Categories
// are always reported in the same order; a panic anywhere in scoring
// degrades to a failed SKIP result instead of escaping.
package scoring

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hazyhaar/rfpwatch/rfp"
)

// Category names, in breakdown order.
const (
	CategoryInstitution     = "institution"
	CategoryBudget          = "budget"
	CategoryTechnology      = "technology"
	CategoryProjectType     = "project_type"
	CategoryTechKeywords    = "tech_keywords"
	CategoryInstitutionSize = "institution_size"
	CategoryGeography       = "geography"
	CategoryRedFlags        = "red_flags"
)

// institutionPriority orders institution labels when several terms match.
var institutionPriority = []string{"community college", "state university", "university", "college"}

type categoryFunc func(text string, res *rfp.FitResult) rfp.CategoryScore

// Scorer applies one rubric. It is safe for concurrent use.
type Scorer struct {
	cfg    Config
	logger *slog.Logger

	institution   termSet
	preferredCMS  termSet
	acceptableCMS termSet
	redFlags      termSet
	projectTypes  termSet
	techKeywords  termSet
	size          termSet
	states        map[string]bool

	categories []categoryFunc
	reasoning  func(rfp.FitResult) string
}

// New compiles cfg into a Scorer. Zero fields take their defaults.
func New(cfg Config) *Scorer {
	cfg.defaults()
	s := &Scorer{
		cfg:           cfg,
		logger:        cfg.Logger,
		institution:   compileTerms(cfg.InstitutionTerms),
		preferredCMS:  compileTerms(cfg.PreferredCMS),
		acceptableCMS: compileTerms(cfg.AcceptableCMS),
		redFlags:      compileTerms(cfg.RedFlags),
		projectTypes:  compileTerms(cfg.ProjectTypes.Terms),
		techKeywords:  compileTerms(cfg.TechKeywords.Terms),
		size:          compileTerms(cfg.InstitutionSize.Terms),
		states:        make(map[string]bool, len(cfg.PreferredStates)),
	}
	for _, st := range cfg.PreferredStates {
		s.states[strings.ToUpper(strings.TrimSpace(st))] = true
	}
	s.categories = []categoryFunc{
		s.scoreInstitution,
		s.scoreBudget,
		s.scoreTechnology,
		s.scoreProjectType,
		s.scoreTechKeywords,
		s.scoreInstitutionSize,
		s.scoreGeography,
		s.scoreRedFlags,
	}
	s.reasoning = buildReasoning
	return s
}

// Thresholds returns the tier thresholds of the rubric.
func (s *Scorer) Thresholds() rfp.Thresholds { return s.cfg.Thresholds }

// MaxScore returns the maximum attainable total.
func (s *Scorer) MaxScore() int { return s.cfg.Weights.Total() }

// Score rates text for opportunity id.
func (s *Scorer) Score(id, text string) (res rfp.FitResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scoring: panic recovered", "opportunity_id", id, "panic", r)
			res = s.degraded(id, fmt.Errorf("internal error: %v", r))
		}
	}()

	res = rfp.FitResult{
		OpportunityID: id,
		MaxScore:      s.MaxScore(),
		Breakdown:     make([]rfp.CategoryScore, 0, len(s.categories)),
		Advantages:    []string{},
		RedFlags:      []string{},
	}
	for _, category := range s.categories {
		cs := category(text, &res)
		res.Breakdown = append(res.Breakdown, cs)
		res.TotalScore += cs.Score
		if cs.Polarity == rfp.Positive {
			res.Advantages = append(res.Advantages, cs.Rationale)
		}
	}
	res.Percentage = Percentage(res.TotalScore, res.MaxScore)
	res.Tier = s.cfg.Thresholds.Tier(res.Percentage)
	res.Reasoning = s.safeReasoning(res)

	s.logger.Debug("scoring: scored",
		"opportunity_id", id, "total", res.TotalScore, "percentage", res.Percentage, "tier", res.Tier)
	return res
}

// Percentage is round(total/max*100) clamped to [0, 100].
func Percentage(total, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	p := int(math.Round(float64(total) / float64(maxScore) * 100))
	return min(100, max0(p))
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func (s *Scorer) degraded(id string, err error) rfp.FitResult {
	res := rfp.FailedResult(id, rfp.E(rfp.KindScoring, "scoring.score", err))
	res.MaxScore = s.MaxScore()
	res.Error = res.FailureReason
	return res
}

func (s *Scorer) safeReasoning(res rfp.FitResult) (out string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("scoring: reasoning failed", "opportunity_id", res.OpportunityID, "panic", r)
			out = ""
		}
	}()
	return s.reasoning(res)
}

// buildReasoning writes one clause per category, in breakdown order.
func buildReasoning(res rfp.FitResult) string {
	clauses := make([]string, 0, len(res.Breakdown)+1)
	for _, c := range res.Breakdown {
		clauses = append(clauses, fmt.Sprintf("%s %d/%d: %s", c.Category, c.Score, c.MaxScore, c.Rationale))
	}
	clauses = append(clauses, fmt.Sprintf("overall %d%% (%s)", res.Percentage, res.Tier))
	return strings.Join(clauses, "; ")
}

func (s *Scorer) scoreInstitution(text string, res *rfp.FitResult) rfp.CategoryScore {
	w := s.cfg.Weights.Institution
	cs := rfp.CategoryScore{Category: CategoryInstitution, MaxScore: w, Polarity: rfp.Neutral}
	m := s.institution.matches(text)
	if len(m) == 0 {
		cs.Rationale = "no higher-education terms"
		return cs
	}
	res.InstitutionType = institutionLabel(m)
	confidence := min(100, int(math.Round(float64(len(m))/float64(s.institution.len())*100)))
	cs.Score = w
	cs.Polarity = rfp.Positive
	cs.Rationale = fmt.Sprintf("higher-education institution (%s, confidence %d%%): %s",
		res.InstitutionType, confidence, strings.Join(m, ", "))
	return cs
}

func institutionLabel(matched []string) string {
	set := make(map[string]bool, len(matched))
	for _, m := range matched {
		set[m] = true
	}
	for _, label := range institutionPriority {
		if set[label] {
			return label
		}
	}
	return "higher education"
}

func (s *Scorer) scoreBudget(text string, res *rfp.FitResult) rfp.CategoryScore {
	w := s.cfg.Weights.Budget
	cs := rfp.CategoryScore{Category: CategoryBudget, MaxScore: w, Polarity: rfp.Neutral}
	amount := s.MaxAmount(text)
	res.Budget = amount
	switch {
	case amount == 0:
		cs.Rationale = "no budget stated"
	case amount >= s.cfg.PreferredBudget:
		cs.Score, cs.Polarity = w, rfp.Positive
		cs.Rationale = fmt.Sprintf("budget %s meets preferred %s", money(amount), money(s.cfg.PreferredBudget))
	case amount >= s.cfg.AcceptableBudget:
		cs.Score, cs.Polarity = int(math.Round(float64(w)*0.6)), rfp.Positive
		cs.Rationale = fmt.Sprintf("budget %s meets acceptable %s", money(amount), money(s.cfg.AcceptableBudget))
	default:
		cs.Polarity = rfp.Negative
		cs.Rationale = fmt.Sprintf("budget %s below acceptable %s", money(amount), money(s.cfg.AcceptableBudget))
	}
	return cs
}

func (s *Scorer) scoreTechnology(text string, _ *rfp.FitResult) rfp.CategoryScore {
	w := s.cfg.Weights.Technology
	cs := rfp.CategoryScore{Category: CategoryTechnology, MaxScore: w, Polarity: rfp.Neutral}
	if m := s.preferredCMS.matches(text); len(m) > 0 {
		cs.Score, cs.Polarity = w, rfp.Positive
		cs.Rationale = "preferred CMS: " + strings.Join(m, ", ")
		return cs
	}
	if m := s.acceptableCMS.matches(text); len(m) > 0 {
		cs.Score, cs.Polarity = int(math.Round(float64(w)/2)), rfp.Positive
		cs.Rationale = "acceptable CMS: " + strings.Join(m, ", ")
		return cs
	}
	cs.Rationale = "no known CMS named"
	return cs
}

func (s *Scorer) scoreProjectType(text string, _ *rfp.FitResult) rfp.CategoryScore {
	return bounded(CategoryProjectType, s.projectTypes, s.cfg.ProjectTypes.Saturation, s.cfg.Weights.ProjectType, text)
}

func (s *Scorer) scoreTechKeywords(text string, _ *rfp.FitResult) rfp.CategoryScore {
	return bounded(CategoryTechKeywords, s.techKeywords, s.cfg.TechKeywords.Saturation, s.cfg.Weights.TechKeywords, text)
}

func (s *Scorer) scoreInstitutionSize(text string, _ *rfp.FitResult) rfp.CategoryScore {
	return bounded(CategoryInstitutionSize, s.size, s.cfg.InstitutionSize.Saturation, s.cfg.Weights.InstitutionSize, text)
}

// bounded scores keyword presence: round(weight * min(1, matches/saturation)).
func bounded(name string, ts termSet, saturation, w int, text string) rfp.CategoryScore {
	cs := rfp.CategoryScore{Category: name, MaxScore: w, Polarity: rfp.Neutral}
	m := ts.matches(text)
	if len(m) == 0 {
		cs.Rationale = "no matching terms"
		return cs
	}
	ratio := math.Min(1, float64(len(m))/float64(max(1, saturation)))
	cs.Score = int(math.Round(float64(w) * ratio))
	if cs.Score > 0 {
		cs.Polarity = rfp.Positive
	}
	cs.Rationale = fmt.Sprintf("%d term(s): %s", len(m), strings.Join(m, ", "))
	return cs
}

func (s *Scorer) scoreGeography(text string, res *rfp.FitResult) rfp.CategoryScore {
	w := s.cfg.Weights.Geography
	cs := rfp.CategoryScore{Category: CategoryGeography, MaxScore: w, Polarity: rfp.Neutral}
	state := ExtractState(text)
	res.State = state
	switch {
	case state == "":
		cs.Rationale = "no US state identified"
	case s.states[state]:
		cs.Score, cs.Polarity = w, rfp.Positive
		cs.Rationale = "preferred state " + state
	default:
		cs.Rationale = "state " + state + " not preferred"
	}
	return cs
}

func (s *Scorer) scoreRedFlags(text string, res *rfp.FitResult) rfp.CategoryScore {
	cs := rfp.CategoryScore{Category: CategoryRedFlags, Polarity: rfp.Neutral}
	m := s.redFlags.matches(text)
	if len(m) == 0 {
		cs.Rationale = "no red flags"
		return cs
	}
	res.RedFlags = append(res.RedFlags, m...)
	cs.Score = -s.cfg.RedFlagPenalty
	cs.Polarity = rfp.Negative
	cs.Rationale = "red flags: " + strings.Join(m, ", ")
	return cs
}

func money(v float64) string {
	return message.NewPrinter(language.English).Sprintf("$%d", int64(math.Round(v)))
}
