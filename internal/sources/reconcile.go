// Package sources turns provider grounding metadata into the ordered,
// deduplicated source list attached to an extraction record.
package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/internal/sanitize"
)

const (
	// DefaultMaxSources caps validated sources per record.
	DefaultMaxSources = 3
	// DefaultMaxContent bounds the evidence text kept per source, in runes.
	DefaultMaxContent = 9950

	contentKeyLen = 200
)

// Reconciled is the reconciler's output for one grounded response.
type Reconciled struct {
	Sources    []model.AttributedSource
	PrimaryURL string
	// Citations is nil when the response carried no supports.
	Citations  []model.InlineCitation
	// RawContent is empty when no source carried text.
	RawContent string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithResolver sets a network resolver applied after local unwrapping.
func WithResolver(r Resolver) Option {
	return func(rc *Reconciler) { rc.resolver = r }
}

// WithMaxSources overrides DefaultMaxSources.
func WithMaxSources(n int) Option {
	return func(rc *Reconciler) {
		if n > 0 {
			rc.maxSources = n
		}
	}
}

// WithMaxContent overrides DefaultMaxContent.
func WithMaxContent(n int) Option {
	return func(rc *Reconciler) {
		if n > 0 {
			rc.maxContent = n
		}
	}
}

// Reconciler builds validated sources from grounding chunks. It holds no
// mutable state and is safe for concurrent use.
type Reconciler struct {
	resolver   Resolver
	maxSources int
	maxContent int
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts ...Option) *Reconciler {
	rc := &Reconciler{maxSources: DefaultMaxSources, maxContent: DefaultMaxContent}
	for _, o := range opts {
		o(rc)
	}
	return rc
}

// Reconcile resolves, dedupes and caps the response's grounding chunks and
// picks the primary source URL, falling back to a search URL for
// school+program when nothing survives.
func (rc *Reconciler) Reconcile(ctx context.Context, raw *model.GroundedResponse, school, program string) Reconciled {
	if raw == nil {
		raw = &model.GroundedResponse{}
	}

	seenURL := make(map[string]bool)
	seenContent := make(map[string]bool)
	chunkToSource := make(map[int]int)
	var out Reconciled

	for i, ch := range raw.Chunks {
		if len(out.Sources) >= rc.maxSources {
			break
		}
		uri := strings.TrimSpace(ch.URI)
		if uri == "" {
			continue
		}
		uri = UnwrapGoogleRedirect(uri)
		if rc.resolver != nil {
			uri = rc.resolver.Resolve(ctx, uri)
		}
		if seenURL[uri] {
			continue
		}

		content := sanitize.Text(sanitize.Truncate(evidence(raw, i), rc.maxContent))
		if key := contentKey(content); key != "" {
			if seenContent[key] {
				continue
			}
			seenContent[key] = true
		}
		seenURL[uri] = true

		chunkToSource[i] = len(out.Sources)
		out.Sources = append(out.Sources, model.AttributedSource{
			Title:      title(ch.Title, uri),
			URL:        uri,
			RawContent: content,
		})
	}

	if len(out.Sources) > 0 {
		out.PrimaryURL = out.Sources[0].URL
	} else {
		out.PrimaryURL = FallbackSearchURL(school, program)
	}
	out.Citations = citations(raw.Supports, chunkToSource)
	out.RawContent = rawContent(out.Sources)
	return out
}

// evidence picks the best text for chunk i: the support segments that cite
// it, then the chunk's inline text, then its search snippet.
func evidence(raw *model.GroundedResponse, i int) string {
	var segs []string
	for _, s := range raw.Supports {
		for _, idx := range s.ChunkIndices {
			if idx == i && strings.TrimSpace(s.SegmentText) != "" {
				segs = append(segs, strings.TrimSpace(s.SegmentText))
				break
			}
		}
	}
	if len(segs) > 0 {
		return strings.Join(segs, " ")
	}
	ch := raw.Chunks[i]
	if strings.TrimSpace(ch.Text) != "" {
		return ch.Text
	}
	return ch.Snippet
}

func contentKey(content string) string {
	c := strings.ToLower(strings.TrimSpace(content))
	if r := []rune(c); len(r) > contentKeyLen {
		c = string(r[:contentKeyLen])
	}
	return c
}

func title(t, uri string) string {
	if t = sanitize.Text(t); t != "" {
		return t
	}
	if u, err := url.Parse(uri); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	return uri
}

func citations(supports []model.GroundingSupport, chunkToSource map[int]int) []model.InlineCitation {
	var out []model.InlineCitation
	for _, s := range supports {
		seen := make(map[int]bool)
		var idx []int
		for _, ci := range s.ChunkIndices {
			si, ok := chunkToSource[ci]
			if !ok || seen[si] {
				continue
			}
			seen[si] = true
			idx = append(idx, si)
		}
		snippet := sanitize.Text(s.SegmentText)
		if len(idx) == 0 || snippet == "" {
			continue
		}
		out = append(out, model.InlineCitation{
			TextSnippet:   snippet,
			SourceIndices: idx,
			StartIndex:    s.StartIndex,
			EndIndex:      s.EndIndex,
		})
	}
	return out
}

// rawContent joins the evidence of every source that has text. It is empty
// when no source carries usable text; callers supply their own summary then.
func rawContent(srcs []model.AttributedSource) string {
	blocks := make([]string, 0, len(srcs))
	for i, s := range srcs {
		if s.RawContent == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Source %d: %s (%s)\n%s", i+1, s.Title, s.URL, s.RawContent))
	}
	return sanitize.Text(strings.Join(blocks, "\n\n"))
}

// FallbackSearchURL builds the deterministic web-search URL used when a
// record has no grounded source.
func FallbackSearchURL(school, program string) string {
	q := strings.Join(strings.Fields(school+" "+program+" tuition"), " ")
	return "https://www.google.com/search?q=" + url.QueryEscape(q)
}
