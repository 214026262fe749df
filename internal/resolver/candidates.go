package resolver

import (
	"regexp"
	"strings"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/fuzzy"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/knowledge"
)

var (
	boldStar       = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	boldUnderscore = regexp.MustCompile(`__([^_\n]+)__`)
)

// candidate is one piece of domain text an entity name is compared against.
// A container candidate only matches by containing the name.
type candidate struct {
	text      string
	norm      string
	sectionID string
	container bool
}

func newCandidate(text, sectionID string) (candidate, bool) {
	norm := fuzzy.Normalize(text)
	if norm == "" || sectionID == "" {
		return candidate{}, false
	}
	return candidate{text: strings.TrimSpace(text), norm: norm, sectionID: sectionID}, true
}

func factsCandidates(records []knowledge.NamedRecord, blobs []knowledge.TextBlob) []candidate {
	out := make([]candidate, 0, len(records)+2*len(blobs))
	for _, r := range records {
		if c, ok := newCandidate(r.Name, r.SectionID); ok {
			out = append(out, c)
		}
	}
	for _, b := range blobs {
		if c, ok := newCandidate(b.Title, b.SectionID); ok {
			out = append(out, c)
		}
		if c, ok := newCandidate(b.Body, b.SectionID); ok {
			c.container = true
			if b.Title != "" {
				c.text = b.Title
			} else {
				c.text = b.SectionID
			}
			out = append(out, c)
		}
	}
	return out
}

func notesCandidates(records []knowledge.AliasedRecord) []candidate {
	out := make([]candidate, 0, len(records))
	for _, r := range records {
		if c, ok := newCandidate(r.Name, r.SectionID); ok {
			out = append(out, c)
		}
		for _, a := range r.Aliases {
			if c, ok := newCandidate(a, r.SectionID); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// rulesCandidates enumerates the section title, bold spans and heading lines.
func rulesCandidates(s knowledge.Section) []candidate {
	out := make([]candidate, 0, 4)
	seen := make(map[string]struct{})
	add := func(text string) {
		c, ok := newCandidate(text, s.SectionID)
		if !ok {
			return
		}
		if _, dup := seen[c.norm]; dup {
			return
		}
		seen[c.norm] = struct{}{}
		out = append(out, c)
	}

	add(s.Title)
	for _, re := range []*regexp.Regexp{boldStar, boldUnderscore} {
		for _, m := range re.FindAllStringSubmatch(s.Body, -1) {
			add(m[1])
		}
	}
	for _, line := range strings.Split(s.Body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			add(strings.TrimLeft(line, "# "))
		}
	}
	return out
}
