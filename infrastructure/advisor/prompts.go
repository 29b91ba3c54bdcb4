package advisor

import (
	"fmt"
	"strings"
	"text/template"
)

// funcs are the helpers available to prompt templates.
var funcs = template.FuncMap{
	"add":   func(a, b int) int { return a + b },
	"join":  strings.Join,
	"money": func(v float64) string { return fmt.Sprintf("€%.2f", v) },
	"score": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"flags": func(fs []string) string {
		if len(fs) == 0 {
			return "None"
		}
		return strings.Join(fs, ", ")
	},
	"truncate": func(s string, n int) string {
		r := []rune(s)
		if n <= 0 {
			return ""
		}
		if len(r) <= n {
			return s
		}
		if n > 3 {
			return string(r[:n-3]) + "..."
		}
		return string(r[:n])
	},
}

var (
	analyzeTmpl = template.Must(template.New("analyze").Funcs(funcs).Parse(
		`You are an expert in laboratory procurement and life sciences.

User Query: "{{.Query}}"
Budget: {{money .Budget}}
Deadline: {{.DeadlineDays}} days

Analyze this query and provide:
1. Expanded search terms (synonyms, related products, alternative names)
2. Implicit needs (what else might they need?)
3. Important specifications to look for
4. Potential compatibility concerns

Respond in JSON format:
{
"expanded_queries": ["term1", "term2", "term3", "term4"],
"implicit_needs": ["need1", "need2"],
"key_specs": ["spec1", "spec2"],
"warnings": ["warning1"]
}`))

	explainTmpl = template.Must(template.New("explain").Funcs(funcs).Parse(
		`You are explaining a product recommendation to a laboratory researcher.

Product: {{.C.Item.Name}}
Vendor: {{.C.Item.Vendor}}
Specification: {{truncate .C.Item.SpecText 200}}
Price: {{money .C.Item.Price}}
User Budget: {{money .Req.Budget}}

Scores:
- Cost fitness: {{score .C.CostFitness}}/1.0
- Scientific evidence: {{score .C.EvidenceScore}}/1.0
- Availability: {{score .C.AvailabilityScore}}/1.0
- Total score: {{printf "%.4f" .C.TotalScore}}

Ranking: #{{.Rank}} out of multiple options

Flags: {{flags .C.FlagNames}}

Write a concise (2-3 sentences) professional explanation of why this product is ranked #{{.Rank}}.
Focus on the most important factors. Be specific about trade-offs if any.`))

	alternativesTmpl = template.Must(template.New("alternatives").Funcs(funcs).Parse(
		`You are helping a researcher understand their options.

Selected product: {{.Selected.Item.Vendor}} {{.Selected.Item.Name}} ({{money .Selected.Item.Price}})
User budget: {{money .Req.Budget}}

Alternatives considered:
{{range .Alternatives}}- {{.Item.Vendor}} {{.Item.Name}}: {{money .Item.Price}} (score: {{score .TotalScore}})
{{end}}
Write 1-2 sentences explaining when the researcher might want to consider the alternatives instead.
Focus on practical trade-offs (price vs quality, speed vs cost, etc.).`))

	summaryTmpl = template.Must(template.New("summary").Funcs(funcs).Parse(
		`Summarize this procurement analysis for a lab manager.

Query: {{.Q.Request.Query}}
Budget: {{money .Q.Request.Budget}}
Options analyzed: {{len .Q.Candidates}}

Top recommendation: {{if .Q.Selected}}{{.Q.Selected.Item.Name}}{{else}}None{{end}}
Price: {{if .Q.Selected}}{{money .Q.Selected.Item.Price}}{{else}}{{money 0.0}}{{end}}
Total score: {{if .Q.Selected}}{{score .Q.Selected.TotalScore}}{{else}}0.00{{end}}

Price range of all options: {{printf "€%.0f" .MinPrice}} - {{printf "€%.0f" .MaxPrice}}

Write a 2-3 sentence executive summary highlighting the key finding and any important considerations.`))
)

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}
