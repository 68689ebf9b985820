// Package augment injects the tag-manager snippet and the form submission script
// into a lead magnet's root document at serve time.
// the work is done on the raw string (no HTML parse), so an uploaded page is never
// re-serialized and keeps its exact bytes apart from the inserted blocks.
package augment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultSubmitEndpoint is where the injected script POSTs submissions.
const DefaultSubmitEndpoint = "/api/submissions"

var (
	// headClosePattern finds the first </head> in any case, tolerating "</head >"
	headClosePattern = regexp.MustCompile(`(?i)</head\s*>`)

	// bodyOpenPattern finds the first <body> or <body ...attributes>.
	// the \s requirement keeps <bodyguard> style custom tags from matching.
	bodyOpenPattern = regexp.MustCompile(`(?i)<body(?:\s[^>]*)?>`)

	// containerIDPattern is the shape of a Google Tag Manager container id
	containerIDPattern = regexp.MustCompile(`^GTM-[A-Z0-9]+$`)
)

// Options configures an Augmenter.
type Options struct {
	// ContainerID is the tag manager container (GTM-XXXX). empty disables the tag-manager blocks,
	// the form script is injected regardless.
	ContainerID string

	// SubmitEndpoint is the path the form script posts to. empty means DefaultSubmitEndpoint.
	SubmitEndpoint string
}

// Augmenter holds the pre-rendered, slug independent blocks.
// it has no mutable state after New, so one instance is shared by all requests.
type Augmenter struct {
	tagManagerHead  string
	tagManagerBody  string
	endpointLiteral string
}

// New validates the options and renders the fixed parts of the snippets once.
func New(options Options) (*Augmenter, error) {
	augmenter := &Augmenter{}

	if options.ContainerID != "" {
		if !containerIDPattern.MatchString(options.ContainerID) {
			return nil, fmt.Errorf("invalid tag manager container id %q, expected GTM-XXXXXXX", options.ContainerID)
		}
		augmenter.tagManagerHead = strings.ReplaceAll(tagManagerHeadTemplate, "__GTM_ID__", jsonStringLiteral(options.ContainerID))
		augmenter.tagManagerBody = strings.ReplaceAll(tagManagerBodyTemplate, "__GTM_ID__", options.ContainerID)
	}

	endpoint := options.SubmitEndpoint
	if endpoint == "" {
		endpoint = DefaultSubmitEndpoint
	}
	augmenter.endpointLiteral = jsonStringLiteral(endpoint)

	return augmenter, nil
}

// insertion is one block to splice into the document at a byte offset of the original string.
type insertion struct {
	position int
	text     string
}

// Augment returns html with:
//   - the tag-manager snippet and the form script right before the first </head>
//     (or prepended to the document when there is no </head>)
//   - the tag-manager noscript fallback right after the first <body ...> tag, if there is one
//
// applying it twice inserts everything twice, so it must only ever run on the stored
// document at response time, and its output is never written back to the store.
func (augmenter *Augmenter) Augment(html string, slug string) string {
	headBlock := augmenter.tagManagerHead + augmenter.formScript(slug)

	// offsets are all taken from the original string, then applied in order
	var insertions []insertion

	if location := headClosePattern.FindStringIndex(html); location != nil {
		insertions = append(insertions, insertion{position: location[0], text: headBlock})
	} else {
		insertions = append(insertions, insertion{position: 0, text: headBlock})
	}

	if augmenter.tagManagerBody != "" {
		if location := bodyOpenPattern.FindStringIndex(html); location != nil {
			insertions = append(insertions, insertion{position: location[1], text: augmenter.tagManagerBody})
		}
	}

	// stable so that two blocks at the same offset keep head-then-body order
	sort.SliceStable(insertions, func(i, j int) bool {
		return insertions[i].position < insertions[j].position
	})

	var builder strings.Builder
	builder.Grow(len(html) + len(headBlock) + len(augmenter.tagManagerBody))

	previousPosition := 0
	for _, block := range insertions {
		builder.WriteString(html[previousPosition:block.position])
		builder.WriteString(block.text)
		previousPosition = block.position
	}
	builder.WriteString(html[previousPosition:])

	return builder.String()
}

// formScript renders the submission script for one slug.
func (augmenter *Augmenter) formScript(slug string) string {
	script := strings.ReplaceAll(formScriptTemplate, "__LM_SLUG__", jsonStringLiteral(slug))
	return strings.ReplaceAll(script, "__LM_ENDPOINT__", augmenter.endpointLiteral)
}

// jsonStringLiteral encodes value as a JavaScript string literal.
// json.Marshal escapes <, > and & as \u003c style sequences, so "</script>" inside value
// cannot terminate the surrounding script element.
func jsonStringLiteral(value string) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		// marshalling a plain string can not fail
		return `""`
	}
	return string(encoded)
}
