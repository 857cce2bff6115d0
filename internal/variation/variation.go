// Package variation maps a requested program label to alternate names that
// schools commonly publish for the same program.
package variation

import (
	"strings"
)

// DefaultMax is the number of alternates consulted per request.
const DefaultMax = 3

// minContainment is the shortest normalized label allowed to match by
// substring containment. Shorter labels ("ms", "ma") only match exactly.
const minContainment = 3

// Entry maps a normalized program label to its known synonyms, in the order
// they should be tried.
type Entry struct {
	Key   string   `yaml:"key"`
	Names []string `yaml:"names"`
}

// builtin is ordered: more specific labels precede the generic ones they
// contain, so containment matching picks the closest entry first.
var builtin = []Entry{
	{Key: "part time mba", Names: []string{"Professional MBA", "Weekend MBA", "Evening MBA", "Working Professional MBA", "Flex MBA"}},
	{Key: "executive mba", Names: []string{"EMBA", "Executive Master of Business Administration", "Global Executive MBA"}},
	{Key: "emba", Names: []string{"Executive MBA", "Executive Master of Business Administration", "Global Executive MBA"}},
	{Key: "full time mba", Names: []string{"Two-Year MBA", "Daytime MBA", "Residential MBA", "MBA"}},
	{Key: "online mba", Names: []string{"MBA Online", "Digital MBA", "Distance Learning MBA", "Hybrid MBA"}},
	{Key: "one year mba", Names: []string{"Accelerated MBA", "1-Year MBA", "Full-Time MBA"}},
	{Key: "evening mba", Names: []string{"Part-Time MBA", "Professional MBA", "Weekend MBA"}},
	{Key: "weekend mba", Names: []string{"Part-Time MBA", "Executive MBA", "Professional MBA"}},
	{Key: "professional mba", Names: []string{"Part-Time MBA", "Evening MBA", "Weekend MBA"}},
	{Key: "ms business analytics", Names: []string{"Master of Science in Business Analytics", "MSBA", "Master of Business Analytics"}},
	{Key: "msba", Names: []string{"MS Business Analytics", "Master of Science in Business Analytics", "Master of Business Analytics"}},
	{Key: "business analytics", Names: []string{"MS Business Analytics", "Master of Business Analytics", "MS Analytics"}},
	{Key: "ms finance", Names: []string{"Master of Science in Finance", "MSF", "Master of Finance"}},
	{Key: "master of finance", Names: []string{"MS Finance", "MSF", "Master of Science in Finance"}},
	{Key: "ms accounting", Names: []string{"Master of Accountancy", "MAcc", "Master of Science in Accounting"}},
	{Key: "macc", Names: []string{"Master of Accountancy", "MS Accounting", "Master of Professional Accountancy"}},
	{Key: "ms marketing", Names: []string{"Master of Science in Marketing", "MS Marketing Analytics", "Master of Marketing"}},
	{Key: "ms management", Names: []string{"Master in Management", "MiM", "Master of Science in Management"}},
	{Key: "master in management", Names: []string{"MiM", "MS Management", "Master of Science in Management"}},
	{Key: "ms information systems", Names: []string{"MSIS", "Master of Information Systems", "MS Management Information Systems"}},
	{Key: "ms data science", Names: []string{"Master of Science in Data Science", "MS Applied Data Science", "Master of Data Science"}},
	{Key: "ms computer science", Names: []string{"Master of Science in Computer Science", "MSCS", "MS in Computing"}},
	{Key: "ms supply chain management", Names: []string{"MS Supply Chain", "Master of Supply Chain Management", "MS Operations and Supply Chain"}},
	{Key: "ms human resources", Names: []string{"MS Human Resource Management", "Master of Human Resources", "MHRM"}},
	{Key: "ms entrepreneurship", Names: []string{"MS Innovation and Entrepreneurship", "Master of Entrepreneurship", "MS Entrepreneurship and Innovation"}},
	{Key: "master of public health", Names: []string{"MPH", "Public Health MPH", "Master of Science in Public Health"}},
	{Key: "mph", Names: []string{"Master of Public Health", "Master of Science in Public Health", "Executive MPH"}},
	{Key: "master of public administration", Names: []string{"MPA", "Master of Public Policy", "Executive MPA"}},
	{Key: "mpa", Names: []string{"Master of Public Administration", "Executive MPA", "Master of Public Policy"}},
	{Key: "jd mba", Names: []string{"JD/MBA", "Joint JD MBA", "Law and Business Dual Degree"}},
	{Key: "phd", Names: []string{"Doctoral Program", "Doctor of Philosophy", "PhD Program"}},
	{Key: "dba", Names: []string{"Doctor of Business Administration", "Executive DBA", "Executive Doctorate in Business"}},
	{Key: "mba", Names: []string{"Full-Time MBA", "Master of Business Administration", "Two-Year MBA"}},
}

// Resolver looks up alternate program names. It is read-only after
// construction and safe for concurrent use.
type Resolver struct {
	entries []Entry
	max     int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMax overrides the number of alternates returned.
func WithMax(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.max = n
		}
	}
}

// WithEntries prepends entries ahead of the built-in mapping, so they win
// on both exact and containment matches.
func WithEntries(entries ...Entry) Option {
	return func(r *Resolver) {
		extra := make([]Entry, 0, len(entries))
		for _, e := range entries {
			key := Normalize(e.Key)
			if key == "" || len(e.Names) == 0 {
				continue
			}
			extra = append(extra, Entry{Key: key, Names: e.Names})
		}
		r.entries = append(extra, r.entries...)
	}
}

// New creates a Resolver over the built-in mapping.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		entries: append([]Entry(nil), builtin...),
		max:     DefaultMax,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// For returns up to the configured maximum of alternate names for program,
// in the order they should be tried. The requested name itself is never
// returned. An empty result means no mapping matched.
func (r *Resolver) For(program string) []string {
	query := Normalize(program)
	if query == "" || r.max == 0 {
		return nil
	}

	entry, ok := r.match(query)
	if !ok {
		return nil
	}

	seen := map[string]bool{query: true}
	out := make([]string, 0, r.max)
	for _, name := range entry.Names {
		n := Normalize(name)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, strings.TrimSpace(name))
		if len(out) == r.max {
			break
		}
	}
	return out
}

func (r *Resolver) match(query string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Key == query {
			return e, true
		}
	}
	for _, e := range r.entries {
		if len(e.Key) < minContainment || len(query) < minContainment {
			continue
		}
		if strings.Contains(query, e.Key) || strings.Contains(e.Key, query) {
			return e, true
		}
	}
	return Entry{}, false
}

// Normalize lowercases a label, drops periods, turns hyphens, slashes and
// underscores into spaces, and collapses whitespace. "Part-Time M.B.A."
// normalizes to "part time mba".
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
