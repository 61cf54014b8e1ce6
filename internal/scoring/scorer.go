// Package scoring implements the diagnostic engine: per-category scores, the
// aggregate readiness score and level, and the gap analysis. The engine is a
// pure function of its inputs — it performs no I/O, never mutates the answer
// set, and recomputing with the same inputs yields the same result.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/exportalisto/backend/internal/catalog"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrMissingCompanyInfo is returned when a final result is requested without
// the company profile. The caller should prompt for the missing data — the
// engine never defaults it, to avoid producing a report attributed to no one.
var ErrMissingCompanyInfo = errors.New("scoring: company info is required")

// ─── TYPES ───────────────────────────────────────────────────────────────────

// Answer is one recorded response. Category is a denormalised copy of the
// question's category for fast filtering. The write path (internal/store)
// guarantees at most one Answer per question id; the engine assumes that
// uniqueness and would double-count if it were violated.
type Answer struct {
	QuestionID string `json:"question_id"`
	Category   string `json:"category"`
	Value      int    `json:"value"`
}

// CompanyInfo is the business profile attached to a final result.
type CompanyInfo struct {
	Name    string `json:"name,omitempty"`
	Sector  string `json:"sector"`
	Size    string `json:"size"` // micro | small | medium
	Country string `json:"country"`
}

// CategoryLevel is the five-tier banding of a single category's percentage.
type CategoryLevel string

const (
	CategoryCritical   CategoryLevel = "critical"
	CategoryNeedsWork  CategoryLevel = "needs_work"
	CategoryDeveloping CategoryLevel = "developing"
	CategoryReady      CategoryLevel = "ready"
	CategoryExcellent  CategoryLevel = "excellent"
)

// Level is the five-tier overall readiness band.
type Level string

const (
	LevelNotReady   Level = "not_ready"   // 0–25
	LevelEarlyStage Level = "early_stage" // 26–50
	LevelDeveloping Level = "developing"  // 51–70
	LevelReady      Level = "ready"       // 71–85
	LevelExportPro  Level = "export_pro"  // 86–100
)

// CategoryScore is the derived score object for one category. Recomputed on
// demand; holds no independent state.
type CategoryScore struct {
	Category      string        `json:"category"`
	CategoryName  string        `json:"category_name"`
	RawScore      float64       `json:"raw_score"`
	MaxPossible   float64       `json:"max_possible"`
	Percentage    float64       `json:"percentage"`
	Weight        float64       `json:"weight"`
	WeightedScore float64       `json:"weighted_score"`
	Level         CategoryLevel `json:"level"`
	LevelColor    string        `json:"level_color"`
}

// Recommendation is a catalog action enriched with resources. Resources are
// attached only to the first recommendation of a gap — a declutter rule, not
// an omission.
type Recommendation struct {
	Action    string             `json:"action"`
	Priority  int                `json:"priority"`
	Timeframe string             `json:"timeframe"`
	Resources []catalog.Resource `json:"resources,omitempty"`
}

// Gap is one identified weakness with its remediation plan.
type Gap struct {
	ID              string           `json:"id"`
	Category        string           `json:"category"`
	CategoryName    string           `json:"category_name"`
	Severity        catalog.Severity `json:"severity"`
	SeverityLabel   string           `json:"severity_label"`
	SeverityColor   string           `json:"severity_color"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	CurrentState    string           `json:"current_state"`
	TargetState     string           `json:"target_state"`
	Recommendations []Recommendation `json:"recommendations"`
	EstimatedEffort catalog.Effort   `json:"estimated_effort"`
	EffortLabel     string           `json:"effort_label"`
}

// DiagnosticResult is the final aggregate, immutable once produced.
type DiagnosticResult struct {
	TotalScore       float64         `json:"total_score"`
	Level            Level           `json:"level"`
	LevelLabel       string          `json:"level_label"`
	LevelDescription string          `json:"level_description"`
	LevelColor       string          `json:"level_color"`
	CategoryScores   []CategoryScore `json:"category_scores"`
	Gaps             []Gap           `json:"gaps"`
	CompletedAt      string          `json:"completed_at"` // ISO-8601, UTC
	CompanyInfo      CompanyInfo     `json:"company_info"`
}

// ─── ENGINE ──────────────────────────────────────────────────────────────────

// Engine computes scores and gaps against a loaded catalog. Safe for
// concurrent use: it only reads the catalog and its inputs.
type Engine struct {
	cat *catalog.Catalog
}

// New returns an Engine bound to the given catalog.
func New(cat *catalog.Catalog) *Engine {
	return &Engine{cat: cat}
}

// CategoryScore computes the score object for one category. The answer set
// may be partial: unanswered questions contribute 0 to rawScore while still
// counting toward maxPossible, so interim scores during the wizard flow are
// valid (lower) scores rather than errors.
func (e *Engine) CategoryScore(categoryID string, answers []Answer) (CategoryScore, error) {
	cat, err := e.cat.CategoryByID(categoryID)
	if err != nil {
		return CategoryScore{}, err
	}

	byQuestion := answerIndex(answers)

	var rawScore, maxPossible float64
	for _, q := range e.cat.QuestionsByCategory(categoryID) {
		if a, ok := byQuestion[q.ID]; ok {
			rawScore += float64(a.Value) * q.Weight
		}
		maxPossible += float64(catalog.MaxOptionValue) * q.Weight
	}

	// Guard the hypothetical empty category.
	percentage := 0.0
	if maxPossible > 0 {
		percentage = rawScore / maxPossible * 100
	}

	level := categoryLevel(percentage)
	return CategoryScore{
		Category:      categoryID,
		CategoryName:  cat.Name,
		RawScore:      rawScore,
		MaxPossible:   maxPossible,
		Percentage:    percentage,
		Weight:        cat.Weight,
		WeightedScore: percentage * cat.Weight,
		Level:         level,
		LevelColor:    CategoryLevelColor(level),
	}, nil
}

// Result computes the full DiagnosticResult: every category score in catalog
// order, the weighted total rounded to one decimal, the overall level, and
// the gap analysis. companyInfo is a required precondition.
func (e *Engine) Result(answers []Answer, companyInfo *CompanyInfo) (DiagnosticResult, error) {
	if companyInfo == nil {
		return DiagnosticResult{}, ErrMissingCompanyInfo
	}

	categories := e.cat.Categories()
	scores := make([]CategoryScore, 0, len(categories))
	totalScore := 0.0
	for _, cat := range categories {
		cs, err := e.CategoryScore(cat.ID, answers)
		if err != nil {
			return DiagnosticResult{}, fmt.Errorf("scoring: category %s: %w", cat.ID, err)
		}
		scores = append(scores, cs)
		totalScore += cs.WeightedScore
	}

	// One decimal place, round half up. The level is banded on the rounded
	// total, so 85.95 rounds to 86.0 and lands in export_pro.
	totalScore = math.Round(totalScore*10) / 10

	level := OverallLevel(totalScore)
	cfg := ConfigForLevel(level)

	return DiagnosticResult{
		TotalScore:       totalScore,
		Level:            level,
		LevelLabel:       cfg.Label,
		LevelDescription: cfg.Description,
		LevelColor:       LevelColor(level),
		CategoryScores:   scores,
		Gaps:             e.AnalyzeGaps(answers, scores),
		CompletedAt:      time.Now().UTC().Format(time.RFC3339),
		CompanyInfo:      *companyInfo,
	}, nil
}

// categoryLevel bands a category percentage. Boundaries are inclusive on the
// upper end of each bucket: exactly 25 is needs_work, not critical.
func categoryLevel(percentage float64) CategoryLevel {
	switch {
	case percentage < 25:
		return CategoryCritical
	case percentage < 50:
		return CategoryNeedsWork
	case percentage < 70:
		return CategoryDeveloping
	case percentage < 85:
		return CategoryReady
	default:
		return CategoryExcellent
	}
}

// OverallLevel bands a 0–100 total score into the overall readiness level:
// the highest band whose MinScore the score reaches. The thresholds live in
// levelConfig so the banding stays a data table, not code branches.
func OverallLevel(score float64) Level {
	for _, l := range levelOrder {
		if score >= float64(levelConfig[l].MinScore) {
			return l
		}
	}
	return LevelNotReady
}

// answerIndex keys the answer slice by question id. The first occurrence wins
// so a duplicate (which the write path prevents) cannot double-count.
func answerIndex(answers []Answer) map[string]Answer {
	m := make(map[string]Answer, len(answers))
	for _, a := range answers {
		if _, ok := m[a.QuestionID]; !ok {
			m[a.QuestionID] = a
		}
	}
	return m
}
