// Package catalog holds the static reference data for the export-readiness
// diagnostic: categories, questions, gap templates, and the recommendation and
// resource tables. The data ships as embedded YAML, is parsed and validated
// once at startup, and is never mutated afterwards — every other package reads
// it through the lookup methods on *Catalog.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// MaxOptionValue is the highest answer value a question option may carry.
// Scoring normalises every question against this maximum.
const MaxOptionValue = 4

// weightTolerance is the allowed floating error when checking that category
// weights sum to 1.0.
const weightTolerance = 1e-9

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrCategoryNotFound is returned when a category id does not exist in the
// catalog. This always indicates a programming or data error — call sites and
// the catalog are expected to be consistent.
var ErrCategoryNotFound = errors.New("catalog: category not found")

// ErrQuestionNotFound is the question-id counterpart of ErrCategoryNotFound.
var ErrQuestionNotFound = errors.New("catalog: question not found")

// ─── TYPES ───────────────────────────────────────────────────────────────────

// Severity is the ordinal urgency of a gap.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the sort position of the severity: critical first, low last.
// Unknown severities sort after low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

func (s Severity) valid() bool {
	return s.Rank() < 4
}

// Effort is the estimated remediation timeframe bucket for a gap.
type Effort string

const (
	EffortQuickWin   Effort = "quick_win"
	EffortShortTerm  Effort = "short_term"
	EffortMediumTerm Effort = "medium_term"
	EffortLongTerm   Effort = "long_term"
)

func (e Effort) valid() bool {
	switch e {
	case EffortQuickWin, EffortShortTerm, EffortMediumTerm, EffortLongTerm:
		return true
	}
	return false
}

// Category is one weighted dimension of export readiness.
type Category struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Weight      float64 `yaml:"weight"` // share of the total score; all weights sum to 1.0
	Icon        string  `yaml:"icon"`
}

// QuestionOption is one selectable answer with its score value.
type QuestionOption struct {
	Value int    `yaml:"value"` // 0..MaxOptionValue
	Label string `yaml:"label"`
}

// Question belongs to exactly one category. Weight is the question's influence
// within its category, independent of the category weight.
type Question struct {
	ID       string           `yaml:"id"`
	Category string           `yaml:"category"`
	Prompt   string           `yaml:"question"`
	Options  []QuestionOption `yaml:"options"`
	Weight   float64          `yaml:"weight"`
	HelpText string           `yaml:"help_text"`
	Critical bool             `yaml:"critical"`
}

// HasOptionValue reports whether v is one of the question's option values.
func (q Question) HasOptionValue(v int) bool {
	for _, opt := range q.Options {
		if opt.Value == v {
			return true
		}
	}
	return false
}

// GapTemplate is a static rule: when the answer to Question has a value at or
// below Threshold, the gap fires. CurrentState maps low answer values to
// human-readable current-state text.
type GapTemplate struct {
	ID           string         `yaml:"id"`
	Question     string         `yaml:"question"`
	Threshold    int            `yaml:"threshold"`
	GapType      string         `yaml:"gap_type"`
	Title        string         `yaml:"title"`
	Description  string         `yaml:"description"`
	CurrentState map[int]string `yaml:"current_state"`
	TargetState  string         `yaml:"target_state"`
	Severity     Severity       `yaml:"severity"`
	Effort       Effort         `yaml:"effort"`
}

// Recommendation is one remediation action registered for a gap type.
type Recommendation struct {
	Action    string `yaml:"action"`
	Priority  int    `yaml:"priority"`
	Timeframe string `yaml:"timeframe"`
}

// Resource is an external support institution or tool linked per category.
type Resource struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Description string `yaml:"description,omitempty"`
}

// ─── CATALOG ─────────────────────────────────────────────────────────────────

// Catalog is the immutable, fully-indexed reference data set. Construct it
// with Load; the zero value is not usable.
type Catalog struct {
	categories []Category
	questions  []Question
	templates  []GapTemplate

	recommendations map[string][]Recommendation // gap_type → actions
	resources       map[string][]Resource       // category id → resources

	categoryByID        map[string]Category
	questionByID        map[string]Question
	questionsByCategory map[string][]Question // preserves catalog order
}

// yaml file shapes

type categoriesFile struct {
	Categories []Category `yaml:"categories"`
}

type questionsFile struct {
	Questions []Question `yaml:"questions"`
}

type gapsFile struct {
	GapTemplates []GapTemplate `yaml:"gap_templates"`
}

type recommendationsFile struct {
	Recommendations map[string][]Recommendation `yaml:"recommendations"`
	Resources       map[string][]Resource       `yaml:"resources"`
}

// Load parses the embedded YAML catalogs, builds the lookup indexes, and
// validates the whole data set. A validation failure is a fatal configuration
// defect — callers should treat any error as unrecoverable.
func Load() (*Catalog, error) {
	var cats categoriesFile
	if err := readYAML("data/categories.yaml", &cats); err != nil {
		return nil, err
	}
	var qs questionsFile
	if err := readYAML("data/questions.yaml", &qs); err != nil {
		return nil, err
	}
	var gf gapsFile
	if err := readYAML("data/gaps.yaml", &gf); err != nil {
		return nil, err
	}
	var rf recommendationsFile
	if err := readYAML("data/recommendations.yaml", &rf); err != nil {
		return nil, err
	}

	c := &Catalog{
		categories:          cats.Categories,
		questions:           qs.Questions,
		templates:           gf.GapTemplates,
		recommendations:     rf.Recommendations,
		resources:           rf.Resources,
		categoryByID:        make(map[string]Category, len(cats.Categories)),
		questionByID:        make(map[string]Question, len(qs.Questions)),
		questionsByCategory: make(map[string][]Question, len(cats.Categories)),
	}

	for _, cat := range c.categories {
		c.categoryByID[cat.ID] = cat
	}
	for _, q := range c.questions {
		c.questionByID[q.ID] = q
		c.questionsByCategory[q.Category] = append(c.questionsByCategory[q.Category], q)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func readYAML(path string, dst any) error {
	raw, err := dataFS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return nil
}

// validate cross-checks the four catalogs against each other. Run once at
// load time; the accessors assume a valid catalog.
func (c *Catalog) validate() error {
	var errs []error

	if len(c.categories) == 0 {
		errs = append(errs, errors.New("catalog: no categories defined"))
	}

	weightSum := 0.0
	for _, cat := range c.categories {
		if cat.Weight <= 0 || cat.Weight > 1 {
			errs = append(errs, fmt.Errorf("catalog: category %s: weight %v out of (0,1]", cat.ID, cat.Weight))
		}
		weightSum += cat.Weight
	}
	if len(c.categories) > 0 && math.Abs(weightSum-1.0) > weightTolerance {
		errs = append(errs, fmt.Errorf("catalog: category weights sum to %v, want 1.0", weightSum))
	}
	if len(c.categoryByID) != len(c.categories) {
		errs = append(errs, errors.New("catalog: duplicate category id"))
	}

	if len(c.questionByID) != len(c.questions) {
		errs = append(errs, errors.New("catalog: duplicate question id"))
	}
	for _, q := range c.questions {
		if _, ok := c.categoryByID[q.Category]; !ok {
			errs = append(errs, fmt.Errorf("catalog: question %s: unknown category %q", q.ID, q.Category))
		}
		if q.Weight <= 0 {
			errs = append(errs, fmt.Errorf("catalog: question %s: weight must be positive, got %v", q.ID, q.Weight))
		}
		if len(q.Options) == 0 {
			errs = append(errs, fmt.Errorf("catalog: question %s: no options", q.ID))
			continue
		}
		hasMax := false
		for _, opt := range q.Options {
			if opt.Value < 0 || opt.Value > MaxOptionValue {
				errs = append(errs, fmt.Errorf("catalog: question %s: option value %d out of [0,%d]", q.ID, opt.Value, MaxOptionValue))
			}
			if opt.Value == MaxOptionValue {
				hasMax = true
			}
		}
		if !hasMax {
			errs = append(errs, fmt.Errorf("catalog: question %s: no option with the maximum value %d", q.ID, MaxOptionValue))
		}
	}

	seenTemplates := make(map[string]bool, len(c.templates))
	for _, t := range c.templates {
		if seenTemplates[t.ID] {
			errs = append(errs, fmt.Errorf("catalog: duplicate gap template id %s", t.ID))
		}
		seenTemplates[t.ID] = true

		q, ok := c.questionByID[t.Question]
		if !ok {
			errs = append(errs, fmt.Errorf("catalog: gap template %s: unknown question %q", t.ID, t.Question))
			continue
		}
		if !t.Severity.valid() {
			errs = append(errs, fmt.Errorf("catalog: gap template %s: invalid severity %q", t.ID, t.Severity))
		}
		if !t.Effort.valid() {
			errs = append(errs, fmt.Errorf("catalog: gap template %s: invalid effort %q", t.ID, t.Effort))
		}
		for v := range t.CurrentState {
			if !q.HasOptionValue(v) {
				errs = append(errs, fmt.Errorf("catalog: gap template %s: current_state key %d is not an option of %s", t.ID, v, q.ID))
			}
		}
	}

	for catID := range c.resources {
		if _, ok := c.categoryByID[catID]; !ok {
			errs = append(errs, fmt.Errorf("catalog: resources registered for unknown category %q", catID))
		}
	}

	return errors.Join(errs...)
}

// ─── LOOKUPS ─────────────────────────────────────────────────────────────────

// Categories returns all categories in catalog order.
func (c *Catalog) Categories() []Category {
	return c.categories
}

// CategoryByID looks up a category. Wraps ErrCategoryNotFound on a miss.
func (c *Catalog) CategoryByID(id string) (Category, error) {
	cat, ok := c.categoryByID[id]
	if !ok {
		return Category{}, fmt.Errorf("%w: %q", ErrCategoryNotFound, id)
	}
	return cat, nil
}

// CategoryName returns the display name for a category id, falling back to
// the id itself for unknown categories. Used for presentation only.
func (c *Catalog) CategoryName(id string) string {
	if cat, ok := c.categoryByID[id]; ok {
		return cat.Name
	}
	return id
}

// Questions returns all questions in catalog order.
func (c *Catalog) Questions() []Question {
	return c.questions
}

// QuestionByID looks up a question. Wraps ErrQuestionNotFound on a miss.
func (c *Catalog) QuestionByID(id string) (Question, error) {
	q, ok := c.questionByID[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: %q", ErrQuestionNotFound, id)
	}
	return q, nil
}

// QuestionsByCategory returns the category's questions in catalog order.
// Unknown categories yield an empty slice.
func (c *Catalog) QuestionsByCategory(categoryID string) []Question {
	return c.questionsByCategory[categoryID]
}

// TotalQuestions returns the number of questions across all categories.
func (c *Catalog) TotalQuestions() int {
	return len(c.questions)
}

// GapTemplates returns all gap templates in catalog order.
func (c *Catalog) GapTemplates() []GapTemplate {
	return c.templates
}

// RecommendationsForGap returns the actions registered for a gap type.
// A gap type with no registered recommendations yields an empty list — that
// is valid data, not an error.
func (c *Catalog) RecommendationsForGap(gapType string) []Recommendation {
	return c.recommendations[gapType]
}

// ResourcesForCategory returns the support resources for a category.
func (c *Catalog) ResourcesForCategory(categoryID string) []Resource {
	return c.resources[categoryID]
}
