// Package training generates clarification questions for unmatched elements
// and folds human answers back into the pattern knowledge base.
package training

import (
	"context"
	"fmt"
	"strings"

	"github.com/stepcapture/stepcapture/internal/match"
	"github.com/stepcapture/stepcapture/pkg/models"
)

// QuestionHistory answers whether a signature was ever asked about in a scope.
type QuestionHistory interface {
	HasQuestionForSignature(ctx context.Context, ownerID, application, signature string) (bool, error)
}

// ActionLookup answers whether any active pattern in a scope carries an action.
type ActionLookup interface {
	HasActionForScope(ctx context.Context, ownerID, application string, elementType models.ElementType) (bool, error)
}

// Generator produces prioritized training questions for unmatched or
// ambiguous elements.
type Generator struct {
	history  QuestionHistory
	patterns ActionLookup
}

// NewGenerator creates a question generator.
func NewGenerator(history QuestionHistory, patterns ActionLookup) *Generator {
	return &Generator{history: history, patterns: patterns}
}

// Signature identifies the approximate element identity a question is about:
// element type plus normalized text. Two visually identical elements on
// different screenshots share a signature, which is what makes the
// first-encounter check converge.
func Signature(elem *models.DetectedElement) string {
	text := strings.Join(strings.Fields(strings.ToLower(elem.Text)), " ")
	return string(elem.Type) + "|" + text
}

// Generate builds one question for an element the matcher could not resolve.
// Screen dimensions feed the salience part of the priority.
func (g *Generator) Generate(ctx context.Context, elem *models.DetectedElement, outcome match.Outcome, screenWidth, screenHeight float64) (*models.TrainingQuestion, error) {
	sig := Signature(elem)

	seen, err := g.history.HasQuestionForSignature(ctx, elem.OwnerID, elem.Application, sig)
	if err != nil {
		return nil, err
	}

	qType, err := g.selectType(ctx, elem, seen)
	if err != nil {
		return nil, err
	}

	priority := Priority(elem, screenWidth, screenHeight)
	if outcome.Kind == match.OutcomeAmbiguous {
		// Near-miss of an existing pattern: the human is likely confirming,
		// not teaching, so it can wait behind first encounters.
		priority = (priority + 1) / 2
	}

	q := models.NewTrainingQuestion(elem, qType, prompt(qType, elem), priority)
	q.Signature = sig

	if outcome.Kind == match.OutcomeAmbiguous {
		q.BestPatternID = nullInt64(outcome.Best.ID)
		q.SecondPatternID = nullInt64(outcome.Second.ID)
		q.BestScore = outcome.BestScore
	}

	return q, nil
}

// selectType picks the question type: purpose for a first-ever encounter of
// the signature, action for interactive elements whose scope has no learned
// action yet, context when business-specific wording is likely, input for
// form fields, purpose as the fallback.
func (g *Generator) selectType(ctx context.Context, elem *models.DetectedElement, seen bool) (models.QuestionType, error) {
	if !seen {
		return models.QuestionTypePurpose, nil
	}

	switch elem.Type {
	case models.ElementTypeButton, models.ElementTypeLink, models.ElementTypeMenu:
		hasAction, err := g.patterns.HasActionForScope(ctx, elem.OwnerID, elem.Application, elem.Type)
		if err != nil {
			return "", err
		}
		if !hasAction {
			return models.QuestionTypeAction, nil
		}
	case models.ElementTypeInput, models.ElementTypeDropdown, models.ElementTypeCheckbox, models.ElementTypeRadio:
		return models.QuestionTypeInput, nil
	}

	if hasDomainTokens(elem.Text) {
		return models.QuestionTypeContext, nil
	}
	return models.QuestionTypePurpose, nil
}

// Priority maps element salience to the 1-10 scale: bigger boxes, higher
// detection confidence, and historically first-answered element types all
// raise it. Each input contributes monotonically.
func Priority(elem *models.DetectedElement, screenWidth, screenHeight float64) int {
	screenArea := screenWidth * screenHeight
	if screenArea <= 0 {
		screenArea = 1920 * 1080
	}

	areaFrac := elem.Box.Area() / screenArea
	areaScore := areaFrac * 10
	if areaScore > 1 {
		areaScore = 1
	}

	score := 0.4*areaScore + 0.4*elem.Confidence + 0.2*typeWeight(elem.Type)

	priority := models.MinPriority + int(score*float64(models.MaxPriority-models.MinPriority)+0.5)
	if priority > models.MaxPriority {
		priority = models.MaxPriority
	}
	if priority < models.MinPriority {
		priority = models.MinPriority
	}
	return priority
}

// typeWeight orders element types by how early users tend to explain them.
func typeWeight(t models.ElementType) float64 {
	switch t {
	case models.ElementTypeButton:
		return 1.0
	case models.ElementTypeLink, models.ElementTypeMenu:
		return 0.9
	case models.ElementTypeInput:
		return 0.8
	case models.ElementTypeDropdown, models.ElementTypeCheckbox, models.ElementTypeRadio:
		return 0.7
	case models.ElementTypeDialog:
		return 0.6
	case models.ElementTypeTable:
		return 0.5
	case models.ElementTypeLabel:
		return 0.4
	default:
		return 0.3
	}
}

// prompt renders the human-facing question text.
func prompt(qType models.QuestionType, elem *models.DetectedElement) string {
	subject := fmt.Sprintf("this %s", elem.Type)
	if elem.Text != "" {
		subject = fmt.Sprintf("the %s %q", elem.Type, elem.Text)
	}

	switch qType {
	case models.QuestionTypeAction:
		return fmt.Sprintf("What happens when the user activates %s?", subject)
	case models.QuestionTypeInput:
		return fmt.Sprintf("What should the user enter or select in %s?", subject)
	case models.QuestionTypeContext:
		return fmt.Sprintf("What does %s mean in your business context?", subject)
	default:
		return fmt.Sprintf("What is the purpose of %s?", subject)
	}
}

// hasDomainTokens reports whether the text looks business-specific rather
// than generic UI chrome. A heuristic, not a contract.
func hasDomainTokens(text string) bool {
	genericUI := map[string]bool{
		"submit": true, "cancel": true, "save": true, "delete": true,
		"close": true, "next": true, "back": true, "search": true,
		"login": true, "logout": true, "edit": true, "view": true,
		"name": true, "email": true, "password": true, "username": true,
		"home": true, "menu": true, "settings": true, "help": true,
		"yes": true, "no": true, "confirm": true, "open": true,
	}

	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?()[]")
		if len(word) >= 4 && !genericUI[word] {
			return true
		}
	}
	return false
}
