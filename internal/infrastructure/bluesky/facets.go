package bluesky

import "regexp"

var (
	urlExpr = regexp.MustCompile(`https?://[^\s]+`)
	tagExpr = regexp.MustCompile(`#\w+`)
)

type facet struct {
	Index    byteSlice `json:"index"`
	Features []feature `json:"features"`
}

type byteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type feature struct {
	Type string `json:"$type"`
	URI  string `json:"uri,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

// buildFacets marks links and hashtags in the post text so they render as
// clickable. Facet indices are byte offsets into the UTF-8 text, which is
// what regexp already reports on a Go string.
func buildFacets(text string) []facet {
	var facets []facet

	for _, loc := range urlExpr.FindAllStringIndex(text, -1) {
		facets = append(facets, facet{
			Index: byteSlice{ByteStart: loc[0], ByteEnd: loc[1]},
			Features: []feature{{
				Type: "app.bsky.richtext.facet#link",
				URI:  text[loc[0]:loc[1]],
			}},
		})
	}

	for _, loc := range tagExpr.FindAllStringIndex(text, -1) {
		if insideLink(facets, loc[0]) {
			continue
		}
		facets = append(facets, facet{
			Index: byteSlice{ByteStart: loc[0], ByteEnd: loc[1]},
			Features: []feature{{
				Type: "app.bsky.richtext.facet#tag",
				Tag:  text[loc[0]+1 : loc[1]],
			}},
		})
	}

	return facets
}

// insideLink guards against treating a URL fragment as a hashtag.
func insideLink(facets []facet, offset int) bool {
	for _, f := range facets {
		if offset >= f.Index.ByteStart && offset < f.Index.ByteEnd {
			return true
		}
	}
	return false
}
