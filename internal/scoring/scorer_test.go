package scoring_test

import (
	"errors"
	"testing"

	"github.com/exportalisto/backend/internal/catalog"
	"github.com/exportalisto/backend/internal/scoring"
)

// ─── HELPERS ──────────────────────────────────────────────────────────────────

func newEngine(t *testing.T) (*scoring.Engine, *catalog.Catalog) {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return scoring.New(cat), cat
}

// allAnswers returns one answer per catalog question, all at the same value.
func allAnswers(cat *catalog.Catalog, value int) []scoring.Answer {
	answers := make([]scoring.Answer, 0, cat.TotalQuestions())
	for _, q := range cat.Questions() {
		answers = append(answers, scoring.Answer{
			QuestionID: q.ID,
			Category:   q.Category,
			Value:      value,
		})
	}
	return answers
}

// withValue returns a copy of answers with the given question set to value.
func withValue(answers []scoring.Answer, questionID string, value int) []scoring.Answer {
	out := make([]scoring.Answer, len(answers))
	copy(out, answers)
	for i := range out {
		if out[i].QuestionID == questionID {
			out[i].Value = value
		}
	}
	return out
}

func company() *scoring.CompanyInfo {
	return &scoring.CompanyInfo{
		Name:    "Textiles Andinos SAC",
		Sector:  "textil",
		Size:    "small",
		Country: "Estados Unidos",
	}
}

func findGap(gaps []scoring.Gap, id string) (scoring.Gap, bool) {
	for _, g := range gaps {
		if g.ID == id {
			return g, true
		}
	}
	return scoring.Gap{}, false
}

// ─── CATEGORY SCORING ─────────────────────────────────────────────────────────

func TestCategoryScore_Banding(t *testing.T) {
	engine, cat := newEngine(t)

	tests := []struct {
		name       string
		value      int
		percentage float64
		level      scoring.CategoryLevel
	}{
		{"all zero is critical", 0, 0, scoring.CategoryCritical},
		{"exactly 25 is needs_work, not critical", 1, 25, scoring.CategoryNeedsWork},
		{"exactly 50 is developing", 2, 50, scoring.CategoryDeveloping},
		{"exactly 75 is ready", 3, 75, scoring.CategoryReady},
		{"perfect score is excellent", 4, 100, scoring.CategoryExcellent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := engine.CategoryScore("product", allAnswers(cat, tt.value))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cs.Percentage != tt.percentage {
				t.Errorf("percentage = %v, want %v", cs.Percentage, tt.percentage)
			}
			if cs.Level != tt.level {
				t.Errorf("level = %s, want %s", cs.Level, tt.level)
			}
		})
	}
}

func TestCategoryScore_MissingAnswersContributeZero(t *testing.T) {
	engine, _ := newEngine(t)

	// Only one product question answered; the rest count toward maxPossible.
	answers := []scoring.Answer{
		{QuestionID: "prod_01", Category: "product", Value: 4},
	}

	cs, err := engine.CategoryScore("product", answers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	full, err := engine.CategoryScore("product", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cs.MaxPossible != full.MaxPossible {
		t.Errorf("maxPossible changed with partial answers: %v vs %v", cs.MaxPossible, full.MaxPossible)
	}
	if cs.Percentage <= 0 || cs.Percentage >= 100 {
		t.Errorf("partial answer percentage = %v, want strictly between 0 and 100", cs.Percentage)
	}
	if full.RawScore != 0 || full.Percentage != 0 {
		t.Errorf("no answers should score zero, got raw=%v pct=%v", full.RawScore, full.Percentage)
	}
}

func TestCategoryScore_UnknownCategory(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.CategoryScore("logistics", nil)
	if !errors.Is(err, catalog.ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestCategoryScore_DuplicateAnswerFirstWins(t *testing.T) {
	engine, _ := newEngine(t)

	answers := []scoring.Answer{
		{QuestionID: "prod_01", Category: "product", Value: 4},
		{QuestionID: "prod_01", Category: "product", Value: 0},
	}
	single := []scoring.Answer{
		{QuestionID: "prod_01", Category: "product", Value: 4},
	}

	dup, err := engine.CategoryScore("product", answers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, err := engine.CategoryScore("product", single)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dup.RawScore != want.RawScore {
		t.Errorf("duplicate answer changed the score: %v vs %v", dup.RawScore, want.RawScore)
	}
}

// ─── OVERALL LEVEL ────────────────────────────────────────────────────────────

func TestOverallLevel_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  scoring.Level
	}{
		{0, scoring.LevelNotReady},
		{25.9, scoring.LevelNotReady},
		{26, scoring.LevelEarlyStage},
		{50.9, scoring.LevelEarlyStage},
		{51, scoring.LevelDeveloping},
		{70.9, scoring.LevelDeveloping},
		{71, scoring.LevelReady},
		{85.9, scoring.LevelReady},
		{86, scoring.LevelExportPro},
		{100, scoring.LevelExportPro},
	}

	for _, tt := range tests {
		if got := scoring.OverallLevel(tt.score); got != tt.want {
			t.Errorf("OverallLevel(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

// ─── FULL RESULT ──────────────────────────────────────────────────────────────

func TestResult_MissingCompanyInfo(t *testing.T) {
	engine, cat := newEngine(t)

	_, err := engine.Result(allAnswers(cat, 4), nil)
	if !errors.Is(err, scoring.ErrMissingCompanyInfo) {
		t.Fatalf("expected ErrMissingCompanyInfo, got %v", err)
	}
}

func TestResult_EmptyAnswers(t *testing.T) {
	engine, cat := newEngine(t)

	result, err := engine.Result(nil, company())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TotalScore != 0 {
		t.Errorf("total = %v, want 0", result.TotalScore)
	}
	if result.Level != scoring.LevelNotReady {
		t.Errorf("level = %s, want not_ready", result.Level)
	}
	if result.LevelLabel != "No Listo para Exportar" {
		t.Errorf("label = %q", result.LevelLabel)
	}
	if result.LevelColor != "#ef4444" {
		t.Errorf("level color = %q, want #ef4444", result.LevelColor)
	}

	// Every category is at 0% with no template fired, so each must surface
	// exactly one synthesised critical gap.
	if len(result.Gaps) != len(cat.Categories()) {
		t.Fatalf("got %d gaps, want %d (one per category)", len(result.Gaps), len(cat.Categories()))
	}
	for _, g := range result.Gaps {
		if g.Severity != catalog.SeverityCritical {
			t.Errorf("gap %s severity = %s, want critical", g.ID, g.Severity)
		}
		if g.ID != "gap_category_"+g.Category {
			t.Errorf("gap %s is not a synthesised category gap", g.ID)
		}
	}
}

func TestResult_AllMaxAnswers(t *testing.T) {
	engine, cat := newEngine(t)

	result, err := engine.Result(allAnswers(cat, 4), company())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TotalScore != 100.0 {
		t.Errorf("total = %v, want 100.0", result.TotalScore)
	}
	if result.Level != scoring.LevelExportPro {
		t.Errorf("level = %s, want export_pro", result.Level)
	}
	if result.LevelColor != "#3b82f6" {
		t.Errorf("level color = %q, want #3b82f6", result.LevelColor)
	}
	if len(result.Gaps) != 0 {
		t.Errorf("perfect diagnostic produced %d gaps", len(result.Gaps))
	}
	for _, cs := range result.CategoryScores {
		if cs.Level != scoring.CategoryExcellent {
			t.Errorf("category %s level = %s, want excellent", cs.Category, cs.Level)
		}
		if cs.LevelColor != "#3b82f6" {
			t.Errorf("category %s level color = %q, want #3b82f6", cs.Category, cs.LevelColor)
		}
	}
	if result.CompletedAt == "" {
		t.Error("completed_at is empty")
	}
	if result.CompanyInfo.Sector != "textil" {
		t.Errorf("company info not carried through: %+v", result.CompanyInfo)
	}
}

func TestResult_InformalityGap(t *testing.T) {
	engine, cat := newEngine(t)

	// Only the formalization question answered, at its worst. Documentation
	// sits at 0% like every other category, so the synthesised documentation
	// gap is suppressed solely because the template gap already covers it.
	answers := []scoring.Answer{
		{QuestionID: "doc_01", Category: "documentation", Value: 0},
	}

	result, err := engine.Result(answers, company())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gap, ok := findGap(result.Gaps, "gap_doc_formalization")
	if !ok {
		t.Fatal("gap_doc_formalization not found")
	}
	if gap.Severity != catalog.SeverityCritical {
		t.Errorf("severity = %s, want critical", gap.Severity)
	}
	if gap.SeverityLabel != "Crítico" || gap.SeverityColor != "#ef4444" {
		t.Errorf("severity display = %q/%q, want Crítico/#ef4444", gap.SeverityLabel, gap.SeverityColor)
	}
	if gap.EffortLabel != "Corto Plazo (1-2 meses)" {
		t.Errorf("effort label = %q", gap.EffortLabel)
	}
	if gap.CurrentState != "Opera informalmente" {
		t.Errorf("current state = %q, want \"Opera informalmente\"", gap.CurrentState)
	}
	if len(gap.Recommendations) == 0 {
		t.Fatal("gap has no recommendations")
	}
	if len(gap.Recommendations[0].Resources) == 0 {
		t.Error("first recommendation carries no resources")
	}
	for _, rec := range gap.Recommendations[1:] {
		if len(rec.Resources) != 0 {
			t.Error("resources attached beyond the first recommendation")
		}
	}

	// Stage 1 produced a documentation gap, so Stage 2 must not add a
	// synthesised one for the same category even though documentation is
	// well below the fallback threshold.
	if _, ok := findGap(result.Gaps, "gap_category_documentation"); ok {
		t.Error("synthesised documentation gap duplicates the template gap")
	}

	// Every other near-zero category still gets its synthesised gap.
	for _, c := range cat.Categories() {
		if c.ID == "documentation" {
			continue
		}
		g, ok := findGap(result.Gaps, "gap_category_"+c.ID)
		if !ok {
			t.Errorf("no synthesised gap for category %s", c.ID)
			continue
		}
		if g.Severity != catalog.SeverityCritical {
			t.Errorf("category %s synthesised severity = %s, want critical", c.ID, g.Severity)
		}
	}
	if len(result.Gaps) != len(cat.Categories()) {
		t.Errorf("got %d gaps, want one per category (%d)", len(result.Gaps), len(cat.Categories()))
	}
}

func TestResult_RoundedToOneDecimal(t *testing.T) {
	engine, _ := newEngine(t)

	// prod_01 weight 1.0 out of 4.8 total product weight:
	// raw 3 / max 19.2 → 15.625% × 0.20 weight → 3.125, rounds to 3.1.
	answers := []scoring.Answer{
		{QuestionID: "prod_01", Category: "product", Value: 3},
	}

	result, err := engine.Result(answers, company())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalScore != 3.1 {
		t.Errorf("total = %v, want 3.1", result.TotalScore)
	}
}

func TestResult_Idempotent(t *testing.T) {
	engine, cat := newEngine(t)
	answers := withValue(allAnswers(cat, 2), "fin_01", 0)

	first, err := engine.Result(answers, company())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.Result(answers, company())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.TotalScore != second.TotalScore {
		t.Errorf("totals differ: %v vs %v", first.TotalScore, second.TotalScore)
	}
	if len(first.Gaps) != len(second.Gaps) {
		t.Fatalf("gap counts differ: %d vs %d", len(first.Gaps), len(second.Gaps))
	}
	for i := range first.Gaps {
		if first.Gaps[i].ID != second.Gaps[i].ID {
			t.Errorf("gap order differs at %d: %s vs %s", i, first.Gaps[i].ID, second.Gaps[i].ID)
		}
	}
}

func TestResult_MonotonicInAnswerValue(t *testing.T) {
	engine, cat := newEngine(t)

	base := allAnswers(cat, 2)
	baseResult, err := engine.Result(base, company())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, q := range cat.Questions() {
		raised, err := engine.Result(withValue(base, q.ID, 3), company())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if raised.TotalScore < baseResult.TotalScore {
			t.Errorf("raising %s lowered the total: %v → %v", q.ID, baseResult.TotalScore, raised.TotalScore)
		}
	}
}
