package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

const SvgMimeType = "image/svg+xml"

var minifier = minify.New()

func init() {
	minifier.AddFunc(SvgMimeType, svg.Minify)
}

var (
	ErrMalformedSvg = errors.New("malformed svg")
	ErrNotSvg       = errors.New("root element is not svg")
)

func MinifySvg(data []byte) ([]byte, error) {
	return minifier.Bytes(SvgMimeType, data)
}

type SvgInfo struct {
	// image elements anywhere in the document
	Images int
	// image elements whose reference is a data:image/ URI
	DataURIs int
}

// InspectSvg parses the whole document as XML. It is the slow path used to
// double check a compressed document, not part of compression itself.
func InspectSvg(data []byte) (SvgInfo, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return SvgInfo{}, fmt.Errorf("%w: %v", ErrMalformedSvg, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return SvgInfo{}, ErrNotSvg
	}

	var info SvgInfo
	for _, el := range doc.FindElements("//image") {
		info.Images++
		for _, attr := range el.Attr {
			if attr.Key != "href" || (attr.Space != "" && attr.Space != "xlink") {
				continue
			}
			if strings.HasPrefix(attr.Value, "data:image/") {
				info.DataURIs++
				break
			}
		}
	}
	return info, nil
}
