package grounding

import (
	"fmt"
	"strings"
)

// Prompt is the instruction pair sent to a grounded provider.
type Prompt struct {
	System string
	User   string
}

// aggregators are ranking and listing sites whose figures are not
// authoritative for a school's published tuition.
var aggregators = []string{
	"US News", "Niche", "Poets&Quants", "Princeton Review", "GMAT Club", "Shiksha",
	"Find MBA", "MastersPortal", "GradSchools.com", "Collegedunia", "BestColleges", "Fortune Education",
}

const systemPrompt = `You are a research assistant that extracts graduate program tuition from official university sources.
Use Google Search. Only rely on the university's own website (.edu or the institution's official domain).
Respond with a single JSON object and nothing else.`

const userTemplate = `Find the current tuition for the %[2]s program at %[1]s.

Rules:
- Only use official sources: pages on the school's .edu domain or its official website. Ignore aggregator and ranking sites such as %[3]s.
- If in-state/resident and out-of-state/non-resident rates are both listed, report the in-state/resident rate and record the other rate in "remarks".
- If both total credits and cost per credit are published, compute tuition_amount as total credits x cost per credit.
- tuition_amount is tuition only. Report fees separately in "additional_fees".
- program_length_months is the total program length in months as an integer.
- actual_program_name is the program name exactly as the school publishes it.
- If you cannot find an official source for this program's tuition, set "status" to "NotFound" and leave the other fields null.

Return JSON with exactly these keys:
{
  "tuition_amount": "string with currency symbol, e.g. \"$48,000\", or null",
  "tuition_period": "what the amount covers, e.g. \"total program\", \"per year\", \"per semester\", or null",
  "academic_year": "e.g. \"2025-2026\", or null",
  "cost_per_credit": "string with currency symbol, or null",
  "total_credits": "string, or null",
  "program_length": "human readable, e.g. \"2 years\", or null",
  "program_length_months": integer or null,
  "actual_program_name": "string or null",
  "is_stem": true, false, or null,
  "additional_fees": "string or null",
  "remarks": "string or null",
  "status": "Success" or "NotFound"
}`

// BuildPrompt renders the extraction prompt for a (school, program) pair.
func BuildPrompt(school, program string) Prompt {
	return Prompt{
		System: systemPrompt,
		User:   fmt.Sprintf(userTemplate, strings.TrimSpace(school), strings.TrimSpace(program), strings.Join(aggregators, ", ")),
	}
}

// DefaultSearchQuery is the query recorded when the provider reports none.
func DefaultSearchQuery(school, program string) string {
	return strings.TrimSpace(school) + " " + strings.TrimSpace(program) + " tuition"
}
