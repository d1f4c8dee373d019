package compressor

import "regexp"

const (
	FormatPng  = "png"
	FormatJpeg = "jpeg"
	FormatJpg  = "jpg"
)

// The reference attribute may be xlink:href or plain href (SVG 2), quoted
// with either ' or ". The closing quote is checked separately since RE2
// has no back references.
var imageTagPattern = regexp.MustCompile(
	`^(?P<prefix><\s*image\s(?:[^>]*\s)?(?:xlink:)?href\s*=\s*(?P<quote>["']))` +
		`data:image/(?P<format>png|jpeg|jpg);base64,(?P<payload>[A-Za-z0-9+/=]+)` +
		`(?P<suffix>["'][^>]*>)$`,
)

var (
	prefixGroup  = imageTagPattern.SubexpIndex("prefix")
	quoteGroup   = imageTagPattern.SubexpIndex("quote")
	formatGroup  = imageTagPattern.SubexpIndex("format")
	payloadGroup = imageTagPattern.SubexpIndex("payload")
	suffixGroup  = imageTagPattern.SubexpIndex("suffix")
)

// Tag is an image element carrying a base64 data URI. All fields alias
// the scanned span; nothing is copied.
type Tag struct {
	// Everything up to and including the opening quote of the value
	Prefix []byte
	Format string
	// Base64 text, still encoded
	Payload []byte
	// Everything from the closing quote to the closing '>'
	Suffix []byte
}

// MatchTag extracts the data URI fields out of a candidate span. It
// reports false for anything else: a missing reference attribute, an
// unsupported format or a malformed value.
func MatchTag(span []byte) (Tag, bool) {
	loc := imageTagPattern.FindSubmatchIndex(span)
	if loc == nil {
		return Tag{}, false
	}
	group := func(i int) []byte {
		return span[loc[2*i]:loc[2*i+1]]
	}
	if span[loc[2*suffixGroup]] != group(quoteGroup)[0] {
		return Tag{}, false
	}
	return Tag{
		Prefix:  group(prefixGroup),
		Format:  string(group(formatGroup)),
		Payload: group(payloadGroup),
		Suffix:  span[loc[2*suffixGroup]:],
	}, true
}

// Len is the byte length of the tag as found in the document.
func (t Tag) Len() int {
	return len(t.Prefix) + len(dataURIHead(t.Format)) + len(t.Payload) + len(t.Suffix)
}

func dataURIHead(format string) string {
	return "data:image/" + format + ";base64,"
}
