package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/session"
)

// Kind is the representation carried by an Answer.
type Kind string

const (
	KindNarrative  Kind = Kind(domain.ShapeNarrative)
	KindChart      Kind = Kind(domain.ShapeChart)
	KindTable      Kind = Kind(domain.ShapeTable)
	KindUnresolved Kind = "unresolved"

	kindError = "error"
)

// Question texts appended to narrative prompts.
const (
	chartQuestion     = "Summarize the requested conditions and provide a concise description."
	narrativeQuestion = "Summarize ocean conditions near these coordinates."
)

// Answer is the result of one chat turn. Text is set for narrative, chart
// and unresolved answers; Chart and Table carry the structured payloads.
type Answer struct {
	Kind      Kind
	SessionID string
	Text      string
	Chart     []domain.ChartRecord
	Table     []domain.TableRow
	Columns   []string
}

// project shapes the bundle according to the requested representation. Chart
// answers also carry a narrative restricted to the requested variables.
func (a *Assistant) project(ctx context.Context, sessionID string, intent domain.Intent, b session.Bundle) (Answer, error) {
	out := Answer{SessionID: sessionID}

	switch intent.Shape() {
	case domain.ShapeChart:
		text, err := a.narrate(ctx, sessionID, b, chartQuestion, intent.Variables)
		if err != nil {
			return Answer{}, err
		}
		out.Kind = KindChart
		out.Text = text
		out.Chart = domain.ChartRecords(b.Profiles, b.Stats, intent.Variables)

	case domain.ShapeTable:
		out.Kind = KindTable
		out.Columns = domain.TableColumns(intent.Variables)
		out.Table = domain.TableRows(b.Profiles, b.Stats, intent.Variables)

	default:
		text, err := a.narrate(ctx, sessionID, b, narrativeQuestion, intent.Variables)
		if err != nil {
			return Answer{}, err
		}
		out.Kind = KindNarrative
		out.Text = text
	}
	return out, nil
}

// narrate sends the prompt to the engine. The no-profiles text is returned
// verbatim without a model call.
func (a *Assistant) narrate(ctx context.Context, sessionID string, b session.Bundle, question string, vars []domain.Variable) (string, error) {
	prompt, ok := domain.NarrativePrompt(b.Profiles, b.Stats, question, vars)
	if !ok {
		return prompt, nil
	}
	text, err := a.narrator.Generate(ctx, sessionID, prompt)
	if err != nil {
		return "", fmt.Errorf("generate narrative: %w", err)
	}
	return text, nil
}
