package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/exportalisto/backend/internal/catalog"
)

// Stage 2 constants. These thresholds were tuned independently of the
// per-template thresholds; there is no unifying formula behind them.
const (
	// fallbackPercentage is the category percentage below which a category
	// must surface at least one gap, synthesising a generic one if no
	// template fired.
	fallbackPercentage = 40

	// fallbackCriticalPercentage decides the synthesised gap's severity:
	// critical below it, high otherwise.
	fallbackCriticalPercentage = 25
)

// currentStateFallback is used when a template has no current-state text for
// the exact answer value that triggered it.
const currentStateFallback = "Estado actual no determinado"

// AnalyzeGaps runs the three-stage gap analysis:
//
//  1. Template pass: every gap template whose trigger question was answered
//     with value ≤ threshold emits a gap. An unanswered trigger question is
//     skipped — not answering is not a failure state here.
//  2. Coverage fallback: any category under 40% with no Stage 1 gap gets one
//     synthesised generic gap, so every sufficiently weak category surfaces
//     at least once even when no single answer was extreme.
//  3. Stable sort by severity (critical, high, medium, low); ties keep
//     catalog order, with synthesised gaps appended before sorting.
//
// A category may contribute several gaps: templates with different gap types
// are never merged.
func (e *Engine) AnalyzeGaps(answers []Answer, categoryScores []CategoryScore) []Gap {
	byQuestion := answerIndex(answers)
	gaps := []Gap{}

	// ── Stage 1: template-driven detection ──
	for _, tpl := range e.cat.GapTemplates() {
		answer, ok := byQuestion[tpl.Question]
		if !ok || answer.Value > tpl.Threshold {
			continue
		}

		// The catalog validated this reference at load time.
		question, err := e.cat.QuestionByID(tpl.Question)
		if err != nil {
			continue
		}

		currentState, ok := tpl.CurrentState[answer.Value]
		if !ok {
			currentState = currentStateFallback
		}

		resources := e.cat.ResourcesForCategory(question.Category)
		recs := e.buildRecommendations(tpl.GapType, resources)

		gaps = append(gaps, Gap{
			ID:              tpl.ID,
			Category:        question.Category,
			CategoryName:    e.cat.CategoryName(question.Category),
			Severity:        tpl.Severity,
			Title:           tpl.Title,
			Description:     tpl.Description,
			CurrentState:    currentState,
			TargetState:     tpl.TargetState,
			Recommendations: recs,
			EstimatedEffort: tpl.Effort,
		})
	}

	// ── Stage 2: coverage fallback for very weak categories ──
	for _, cs := range categoryScores {
		if cs.Percentage >= fallbackPercentage {
			continue
		}
		if hasGapForCategory(gaps, cs.Category) {
			continue
		}

		severity := catalog.SeverityHigh
		if cs.Percentage < fallbackCriticalPercentage {
			severity = catalog.SeverityCritical
		}
		rounded := int(math.Round(cs.Percentage))

		gaps = append(gaps, Gap{
			ID:           "gap_category_" + cs.Category,
			Category:     cs.Category,
			CategoryName: cs.CategoryName,
			Severity:     severity,
			Title:        fmt.Sprintf("%s Requiere Atención", cs.CategoryName),
			Description: fmt.Sprintf(
				"Tu puntuación en %s es %d%%, lo cual indica que esta área necesita desarrollo significativo.",
				cs.CategoryName, rounded),
			CurrentState: fmt.Sprintf("Puntuación actual: %d%%", rounded),
			TargetState:  "Alcanzar al menos 70% en esta categoría",
			Recommendations: []Recommendation{
				{
					Action:    fmt.Sprintf("Revisar todas las preguntas de %s y trabajar en las áreas débiles", cs.CategoryName),
					Priority:  1,
					Timeframe: "1-2 meses",
					Resources: e.cat.ResourcesForCategory(cs.Category),
				},
			},
			EstimatedEffort: catalog.EffortMediumTerm,
		})
	}

	// Display labels and colours derive from severity/effort, so fill them
	// in one place for both stages.
	for i := range gaps {
		gaps[i].SeverityLabel = SeverityLabel(gaps[i].Severity)
		gaps[i].SeverityColor = SeverityColor(gaps[i].Severity)
		gaps[i].EffortLabel = EffortLabel(gaps[i].EstimatedEffort)
	}

	// ── Stage 3: order by severity ──
	sort.SliceStable(gaps, func(a, b int) bool {
		return gaps[a].Severity.Rank() < gaps[b].Severity.Rank()
	})

	return gaps
}

// buildRecommendations copies the gap type's catalog actions, attaching the
// category resources to the first one only.
func (e *Engine) buildRecommendations(gapType string, resources []catalog.Resource) []Recommendation {
	catalogRecs := e.cat.RecommendationsForGap(gapType)
	recs := make([]Recommendation, 0, len(catalogRecs))
	for idx, cr := range catalogRecs {
		rec := Recommendation{
			Action:    cr.Action,
			Priority:  cr.Priority,
			Timeframe: cr.Timeframe,
		}
		if idx == 0 {
			rec.Resources = resources
		}
		recs = append(recs, rec)
	}
	return recs
}

func hasGapForCategory(gaps []Gap, categoryID string) bool {
	for _, g := range gaps {
		if g.Category == categoryID {
			return true
		}
	}
	return false
}
