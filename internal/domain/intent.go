package domain

import "strings"

var (
	chartKeywords = []string{"visualize", "visualization", "chart", "plot", "graph", "show chart", "display graph"}
	tableKeywords = []string{
		"table", "tabular", "tabulated", "grid", "rows and columns",
		"table format", "tabular format", "show in table", "render a table",
	}

	// variableKeywords is ordered; requested variables are reported in this order.
	variableKeywords = []struct {
		variable Variable
		keywords []string
	}{
		{VariableTemperature, []string{"temperature", "temp"}},
		{VariableSalinity, []string{"salinity", "saline", "salt"}},
		{VariablePressure, []string{"pressure", "pres"}},
	}
)

// Shape is the answer representation a query asks for.
type Shape string

const (
	ShapeNarrative Shape = "answer"
	ShapeChart     Shape = "visualization"
	ShapeTable     Shape = "table"
)

// Intent is the output shape and variable selection derived from query text.
type Intent struct {
	WantsChart   bool
	WantsTable   bool
	WantsSummary bool
	// Variables is empty when the query names none, meaning "all".
	Variables []Variable
}

// Shape returns the primary answer shape. A chart wins over a table, and a
// narrative is the fallback.
func (i Intent) Shape() Shape {
	switch {
	case i.WantsChart:
		return ShapeChart
	case i.WantsTable:
		return ShapeTable
	default:
		return ShapeNarrative
	}
}

// ClassifyIntent matches the text case-insensitively against fixed keyword
// sets. It never fails; unmatched intents are simply false or empty.
func ClassifyIntent(text string) Intent {
	q := strings.ToLower(text)

	intent := Intent{
		WantsChart: containsAny(q, chartKeywords),
		WantsTable: containsAny(q, tableKeywords),
	}
	intent.WantsSummary = strings.Contains(q, "summary") || (!intent.WantsChart && !intent.WantsTable)

	for _, vk := range variableKeywords {
		if containsAny(q, vk.keywords) {
			intent.Variables = append(intent.Variables, vk.variable)
		}
	}
	return intent
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
