package grounding

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/tuition-research/internal/model"
)

// payloadSchema accepts the loose shapes models actually emit (numbers for
// amounts, strings for booleans) and rejects anything structurally wrong.
const payloadSchema = `{
  "type": "object",
  "properties": {
    "tuition_amount":        {"type": ["string", "number", "null"]},
    "tuition_period":        {"type": ["string", "null"]},
    "academic_year":         {"type": ["string", "number", "null"]},
    "cost_per_credit":       {"type": ["string", "number", "null"]},
    "total_credits":         {"type": ["string", "number", "null"]},
    "program_length":        {"type": ["string", "number", "null"]},
    "program_length_months": {"type": ["integer", "number", "string", "null"]},
    "actual_program_name":   {"type": ["string", "null"]},
    "is_stem":               {"type": ["boolean", "string", "null"]},
    "additional_fees":       {"type": ["string", "number", "null"]},
    "remarks":               {"type": ["string", "null"]},
    "status":                {"type": ["string", "null"]}
  }
}`

var schema = jsonschema.MustCompileString("tuition_payload.json", payloadSchema)

var leadingIntRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseFields recovers the extraction payload from a model's free text. It
// accepts bare JSON, JSON in a markdown fence, or JSON wrapped in prose
// (first "{" to last "}"). Anything else is a *ParseError.
func ParseFields(text string) (model.ExtractedFields, error) {
	var out model.ExtractedFields

	raw := cleanJSON(text)
	if !strings.HasPrefix(raw, "{") || !strings.HasSuffix(raw, "}") {
		return out, newParseError("no JSON object found", text, nil)
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return out, newParseError("invalid JSON", text, err)
	}
	if err := schema.Validate(doc); err != nil {
		return out, newParseError("payload does not match schema", text, err)
	}

	m := doc.(map[string]any)
	out.TuitionAmount = toString(m["tuition_amount"])
	out.TuitionPeriod = toString(m["tuition_period"])
	out.AcademicYear = toString(m["academic_year"])
	out.CostPerCredit = toString(m["cost_per_credit"])
	out.TotalCredits = toString(m["total_credits"])
	out.ProgramLength = toString(m["program_length"])
	out.ProgramLengthMonths = toInt(m["program_length_months"])
	out.ActualProgramName = toString(m["actual_program_name"])
	out.IsSTEM = toBool(m["is_stem"])
	out.AdditionalFees = toString(m["additional_fees"])
	out.Remarks = toString(m["remarks"])

	status, ok := parseStatus(m["status"], out.HasTuition())
	if !ok {
		return out, newParseError("unrecognized status "+strconv.Quote(toStringValue(m["status"])), text, nil)
	}
	out.Status = status
	return out, nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// parseStatus maps the payload status. A missing status is inferred from
// whether a tuition figure is present.
func parseStatus(v any, hasTuition bool) (model.ExtractionStatus, bool) {
	s, _ := v.(string)
	key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "":
		if hasTuition {
			return model.ExtractionSuccess, true
		}
		return model.ExtractionNotFound, true
	case "success", "found", "ok":
		return model.ExtractionSuccess, true
	case "notfound", "none", "missing":
		return model.ExtractionNotFound, true
	default:
		return "", false
	}
}

func toString(v any) *string {
	s := toStringValue(v)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func toStringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func toInt(v any) *int {
	switch t := v.(type) {
	case float64:
		n := int(math.Round(t))
		return &n
	case string:
		m := leadingIntRe.FindString(t)
		if m == "" {
			return nil
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		n := int(math.Round(f))
		return &n
	default:
		return nil
	}
}

func toBool(v any) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y":
			b = true
		case "false", "no", "n":
			b = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &b
}
