// Package references extracts issue link references such as "closes #12" or
// "depends on acme/api#7" from issue titles and bodies.
package references

import (
	"regexp"
	"strconv"
	"strings"

	"boardcore/pkg/domain"
)

const refPattern = `(?:[\w.-]+/[\w.-]+)?#\d+|https?://github\.com/[\w.-]+/[\w.-]+/(?:issues|pull)/\d+`

var (
	phrasePattern = regexp.MustCompile(`(?i)\b(close[sd]?|fix(?:e[sd])?|resolve[sd]?|depends\s+on|requires|needs|required\s+by|needed\s+by|parent\s+of|child\s+of|part\s+of|sub-?task\s+of|relate[sd]\s+to|related\s+to)\s*:?\s+((?:` + refPattern + `)(?:\s*(?:,|and)\s*(?:` + refPattern + `))*)`)
	singleRef     = regexp.MustCompile(refPattern)
	shortRef      = regexp.MustCompile(`^(?:([\w.-]+)/([\w.-]+))?#(\d+)$`)
	urlRef        = regexp.MustCompile(`^https?://github\.com/([\w.-]+)/([\w.-]+)/(?:issues|pull)/(\d+)$`)
	whitespace    = regexp.MustCompile(`\s+`)
)

var phraseTypes = map[string]domain.LinkType{
	"close": domain.LinkCloses, "closes": domain.LinkCloses, "closed": domain.LinkCloses,
	"fix": domain.LinkCloses, "fixes": domain.LinkCloses, "fixed": domain.LinkCloses,
	"resolve": domain.LinkCloses, "resolves": domain.LinkCloses, "resolved": domain.LinkCloses,
	"depends on": domain.LinkDependsOn, "requires": domain.LinkDependsOn, "needs": domain.LinkDependsOn,
	"required by": domain.LinkRequiredBy, "needed by": domain.LinkRequiredBy,
	"parent of": domain.LinkParentOf,
	"child of": domain.LinkChildOf, "part of": domain.LinkChildOf,
	"subtask of": domain.LinkChildOf, "sub-task of": domain.LinkChildOf,
	"relates to": domain.LinkLinkedTo, "related to": domain.LinkLinkedTo,
}

// Extractor implements domain.ReferenceExtractor.
type Extractor struct{}

var _ domain.ReferenceExtractor = Extractor{}

// FindReferences scans the title and body of issue. Each distinct
// (owner, repo, number, type) is reported once, in order of appearance.
func (Extractor) FindReferences(issue domain.Issue) []domain.Reference {
	var out []domain.Reference
	seen := make(map[string]bool)
	for _, text := range []string{issue.Title, issue.Body} {
		for _, m := range phrasePattern.FindAllStringSubmatch(text, -1) {
			phrase := strings.ToLower(whitespace.ReplaceAllString(m[1], " "))
			linkType, ok := phraseTypes[phrase]
			if !ok {
				continue
			}
			for _, raw := range singleRef.FindAllString(m[2], -1) {
				ref, ok := parseRef(raw)
				if !ok {
					continue
				}
				ref.Type = linkType
				ref.Attrs = map[string]string{"phrase": phrase}
				id := ref.Owner + "/" + ref.Repo + "#" + strconv.Itoa(ref.Number) + ":" + string(linkType)
				if seen[id] {
					continue
				}
				seen[id] = true
				out = append(out, ref)
			}
		}
	}
	return out
}

func parseRef(raw string) (domain.Reference, bool) {
	var parts []string
	if p := shortRef.FindStringSubmatch(raw); p != nil {
		parts = p
	} else if p := urlRef.FindStringSubmatch(raw); p != nil {
		parts = p
	} else {
		return domain.Reference{}, false
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil || n <= 0 {
		return domain.Reference{}, false
	}
	return domain.Reference{Owner: parts[1], Repo: parts[2], Number: n}, true
}
