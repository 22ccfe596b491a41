package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// NoProfilesMessage is the narrative answer when nothing was fetched.
const NoProfilesMessage = "No profiles found for the given floats."

// narrativeOrder is the order condition lines appear in narrative text.
var narrativeOrder = []Variable{VariablePressure, VariableTemperature, VariableSalinity}

// ChartLocation is the position block of a chart record.
type ChartLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// DepthRange is the depth block of a chart record.
type DepthRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// ChartRecord is one profile in visualization form.
type ChartRecord struct {
	ProfileID    int64               `json:"profile_id"`
	SensorID     string              `json:"float_id"`
	Datetime     *string             `json:"datetime"`
	Location     ChartLocation       `json:"location"`
	DepthRange   DepthRange          `json:"depth_range"`
	Measurements map[string]*float64 `json:"measurements"`
}

// TableRow is one profile in table form, keyed by column name.
type TableRow map[string]any

// ChartRecords projects profiles into visualization records. Measurements
// carry min/max/avg for the requested variables, or all three when vars is
// empty. Non-finite values become null.
func ChartRecords(profiles []ProfileRecord, stats []MeasurementStats, vars []Variable) []ChartRecord {
	include := includedVariables(vars)
	n := min(len(profiles), len(stats))
	out := make([]ChartRecord, 0, n)
	for i := range n {
		p, s := profiles[i], stats[i]
		rec := ChartRecord{
			ProfileID: p.ProfileID,
			SensorID:  p.SensorID,
			Location: ChartLocation{
				Latitude:  jsonNumber(&p.Location.Lat),
				Longitude: jsonNumber(&p.Location.Lon),
			},
			DepthRange:   DepthRange{Min: jsonNumber(p.DepthMin), Max: jsonNumber(p.DepthMax)},
			Measurements: make(map[string]*float64, 3*len(include)),
		}
		if p.Timestamp != nil {
			ts := p.Timestamp.UTC().Format("2006-01-02T15:04:05Z")
			rec.Datetime = &ts
		}
		for _, v := range include {
			st := s.For(v)
			rec.Measurements[string(v)+"_min"] = jsonNumber(st.Min)
			rec.Measurements[string(v)+"_max"] = jsonNumber(st.Max)
			rec.Measurements[string(v)+"_avg"] = jsonNumber(st.Avg)
		}
		out = append(out, rec)
	}
	return out
}

// TableColumns returns the table column names in display order.
func TableColumns(vars []Variable) []string {
	cols := []string{"float_id", "latitude", "longitude", "depth_min", "depth_max"}
	for _, v := range tableVariables(vars) {
		cols = append(cols, string(v))
	}
	return cols
}

// TableRows flattens profiles into rows: rounded location (4 decimals) and
// depth (3 decimals), then the rounded average of each requested variable, or
// of all three when vars is empty. Missing averages are null.
func TableRows(profiles []ProfileRecord, stats []MeasurementStats, vars []Variable) []TableRow {
	cols := tableVariables(vars)
	n := min(len(profiles), len(stats))
	out := make([]TableRow, 0, n)
	for i := range n {
		p, s := profiles[i], stats[i]
		row := TableRow{
			"float_id":  p.SensorID,
			"latitude":  rounded(&p.Location.Lat, 4),
			"longitude": rounded(&p.Location.Lon, 4),
			"depth_min": rounded(p.DepthMin, 3),
			"depth_max": rounded(p.DepthMax, 3),
		}
		for _, v := range cols {
			row[string(v)] = rounded(s.For(v).Avg, 3)
		}
		out = append(out, row)
	}
	return out
}

// NarrativePrompt builds the language-model prompt describing each profile.
// When there are no profiles it returns NoProfilesMessage and false; that
// text is the final answer and must not be sent to a model.
func NarrativePrompt(profiles []ProfileRecord, stats []MeasurementStats, question string, vars []Variable) (string, bool) {
	if len(profiles) == 0 {
		return NoProfilesMessage, false
	}

	include := includedVariables(vars)
	n := min(len(profiles), len(stats))
	blocks := make([]string, 0, n)
	for i := range n {
		blocks = append(blocks, profileBlock(profiles[i], stats[i], include))
	}

	var restrict string
	if len(vars) > 0 {
		names := make([]string, len(vars))
		for i, v := range vars {
			names[i] = string(v)
		}
		restrict = "Only report the following conditions and nothing else: " + strings.Join(names, ", ") + ".\n"
	}

	var b strings.Builder
	b.WriteString("You are an expert oceanography assistant.\n")
	b.WriteString("Use ONLY the information in the profiles below.\n")
	b.WriteString("Do NOT invent float IDs, dates, or measurements.\n")
	b.WriteString("Just give the answer related to the oceanographic conditions you were asked about.\n")
	b.WriteString("If the user asks questions other than ocean then reply I am an oceanographic assistant, please ask me the questions related to it.\n")
	b.WriteString(restrict)
	b.WriteString("\nProfiles retrieved:\n")
	b.WriteString(strings.Join(blocks, "\n"))
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n")
	return b.String(), true
}

func profileBlock(p ProfileRecord, s MeasurementStats, include []Variable) string {
	date := "Unknown"
	if p.Timestamp != nil {
		date = p.Timestamp.UTC().Format(time.DateTime)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- Float ID: %s\n", p.SensorID)
	fmt.Fprintf(&b, "- Date: %s\n", date)
	fmt.Fprintf(&b, "- Location: Latitude %s, Longitude %s\n", FormatNumber(&p.Location.Lat), FormatNumber(&p.Location.Lon))
	fmt.Fprintf(&b, "- Depth Range: %s - %s meters\n", FormatNumber(p.DepthMin), FormatNumber(p.DepthMax))
	b.WriteString("- Conditions:\n")
	for _, v := range include {
		st := s.For(v)
		fmt.Fprintf(&b, "   • %s: min %s, max %s, avg %s\n",
			capitalize(string(v)), FormatNumber(st.Min), FormatNumber(st.Max), FormatNumber(st.Avg))
	}
	return b.String()
}

// FormatNumber renders a value with two decimals for narrative text, or
// "Unknown" when it is missing or not finite.
func FormatNumber(p *float64) string {
	v, ok := finite(p)
	if !ok {
		return "Unknown"
	}
	return fmt.Sprintf("%.2f", v)
}

// includedVariables returns the variables to show, in narrative order.
func includedVariables(vars []Variable) []Variable {
	if len(vars) == 0 {
		return narrativeOrder
	}
	out := make([]Variable, 0, len(vars))
	for _, v := range narrativeOrder {
		for _, want := range vars {
			if v == want {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// tableVariables returns the variable columns: the requested ones in request
// order, or pressure, temperature, salinity when none were requested.
func tableVariables(vars []Variable) []Variable {
	if len(vars) == 0 {
		return narrativeOrder
	}
	return vars
}

func jsonNumber(p *float64) *float64 {
	v, ok := finite(p)
	if !ok {
		return nil
	}
	return &v
}

func rounded(p *float64, places int) *float64 {
	v, ok := finite(p)
	if !ok {
		return nil
	}
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale
	return &r
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
