package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/pipeline"
)

type scriptedAnswerer struct {
	answers  map[string]pipeline.Answer
	sessions []string
	texts    []string
}

func (s *scriptedAnswerer) ResolveAndAnswer(_ context.Context, sessionID, text string) (pipeline.Answer, error) {
	s.sessions = append(s.sessions, sessionID)
	s.texts = append(s.texts, text)
	a, ok := s.answers[text]
	if !ok {
		return pipeline.Answer{}, errors.New("storage unavailable")
	}
	return a, nil
}

func TestChatLoop(t *testing.T) {
	lat, temp := 13.0827, 28.123
	a := &scriptedAnswerer{answers: map[string]pipeline.Answer{
		"temperature near lat 13 lon 80": {Kind: pipeline.KindNarrative, Text: "Warm."},
		"show in table": {
			Kind:    pipeline.KindTable,
			Columns: []string{"float_id", "latitude", "temperature"},
			Table:   []domain.TableRow{{"float_id": "2902100", "latitude": &lat, "temperature": &temp}},
		},
	}}
	in := strings.NewReader("temperature near lat 13 lon 80\n\nshow in table\nwhat now\nquit\nnever read\n")
	var out strings.Builder

	require.NoError(t, chatLoop(context.Background(), a, "s-1", in, &out))

	assert.Equal(t, []string{"temperature near lat 13 lon 80", "show in table", "what now"}, a.texts)
	assert.Equal(t, []string{"s-1", "s-1", "s-1"}, a.sessions)
	got := out.String()
	assert.Contains(t, got, "Bot: Warm.")
	assert.Contains(t, got, "float_id")
	assert.Contains(t, got, "2902100")
	assert.Contains(t, got, "28.123")
	assert.Contains(t, got, "Error: storage unavailable")
}

func TestChatLoop_EOF(t *testing.T) {
	a := &scriptedAnswerer{}
	var out strings.Builder
	require.NoError(t, chatLoop(context.Background(), a, "s", strings.NewReader(""), &out))
	assert.Empty(t, a.texts)
}

func TestRenderAnswer_EmptyTable(t *testing.T) {
	var out strings.Builder
	renderAnswer(&out, pipeline.Answer{Kind: pipeline.KindTable, Columns: []string{"float_id"}})
	assert.Contains(t, out.String(), domain.NoProfilesMessage)
}

func TestFormatCell(t *testing.T) {
	v := 1.5
	var missing *float64
	assert.Equal(t, "1.5", formatCell(&v))
	assert.Equal(t, "null", formatCell(missing))
	assert.Equal(t, "null", formatCell(nil))
	assert.Equal(t, "2902100", formatCell("2902100"))
}
