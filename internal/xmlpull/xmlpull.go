// Package xmlpull wraps encoding/xml's streaming decoder with
// namespace-tolerant element and attribute matching, so callers can match
// against either the 2006 OOXML schemas or their purl.oclc.org successors
// without hard-coding one family.
package xmlpull

import (
	"encoding/xml"
	"fmt"
	"io"
)

// NamespaceID names a group of namespace URIs that are treated as
// equivalent for matching purposes.
type NamespaceID int

const (
	// NSNone matches only the empty (unprefixed) namespace.
	NSNone NamespaceID = iota
	// NSXLSXMain matches the SpreadsheetML main namespace.
	NSXLSXMain
	// NSRelDoc matches the officeDocument relationships namespace.
	NSRelDoc
	// NSRelPkg matches the package relationships namespace.
	NSRelPkg
)

var namespaceURIs = map[NamespaceID][]string{
	NSNone: {""},
	NSXLSXMain: {
		"http://schemas.openxmlformats.org/spreadsheetml/2006/main",
		"http://purl.oclc.org/ooxml/spreadsheetml/main",
	},
	NSRelDoc: {
		"http://schemas.openxmlformats.org/officeDocument/2006/relationships",
		"http://purl.oclc.org/ooxml/officeDocument/relationships",
	},
	NSRelPkg: {
		"http://schemas.openxmlformats.org/package/2006/relationships",
		"http://purl.oclc.org/ooxml/officeDocument/relationships",
	},
}

// ErrInvalidNamespace is returned when a NamespaceID is outside the known set.
type ErrInvalidNamespace struct {
	ID NamespaceID
}

func (e *ErrInvalidNamespace) Error() string {
	return fmt.Sprintf("xmlpull: unknown namespace identifier %d", e.ID)
}

func uris(id NamespaceID) ([]string, error) {
	u, ok := namespaceURIs[id]
	if !ok {
		return nil, &ErrInvalidNamespace{ID: id}
	}
	return u, nil
}

// Reader is a thin pull-parsing adapter over *xml.Decoder. It tracks the
// most recently read token and exposes namespace-tolerant matching helpers.
type Reader struct {
	dec  *xml.Decoder
	src  io.ReadCloser
	tok  xml.Token
	cur  xml.StartElement
	curIsStart bool
}

// Open wraps an already-open byte stream as a Reader. The caller retains
// ownership of src and must Close the Reader (which closes src) when done.
func Open(src io.ReadCloser) *Reader {
	return &Reader{dec: xml.NewDecoder(src), src: src}
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	if r.src == nil {
		return nil
	}
	return r.src.Close()
}

// Read advances to the next token. It returns false at EOF.
func (r *Reader) Read() bool {
	tok, err := r.dec.Token()
	if err != nil {
		r.tok = nil
		r.curIsStart = false
		return false
	}
	r.tok = xml.CopyToken(tok)
	if se, ok := r.tok.(xml.StartElement); ok {
		r.cur = se
		r.curIsStart = true
	} else {
		r.curIsStart = false
	}
	return true
}

// IsClosingTag reports whether the current token is an EndElement.
func (r *Reader) IsClosingTag() bool {
	_, ok := r.tok.(xml.EndElement)
	return ok
}

// LocalName returns the local name of the current start or end element,
// or "" if the current token is neither.
func (r *Reader) LocalName() string {
	switch t := r.tok.(type) {
	case xml.StartElement:
		return t.Name.Local
	case xml.EndElement:
		return t.Name.Local
	}
	return ""
}

// MatchesElement reports whether the current token is a StartElement whose
// local name and namespace match.
func (r *Reader) MatchesElement(localName string, nsID NamespaceID) (bool, error) {
	if !r.curIsStart {
		return false, nil
	}
	if r.cur.Name.Local != localName {
		return false, nil
	}
	accepted, err := uris(nsID)
	if err != nil {
		return false, err
	}
	for _, u := range accepted {
		if r.cur.Name.Space == u {
			return true, nil
		}
	}
	return false, nil
}

// MatchesOneOf returns the key of the first candidate in candidates whose
// (localName, nsID) matches the current element, or "" with ok=false.
func (r *Reader) MatchesOneOf(candidates map[string]struct {
	LocalName string
	NS        NamespaceID
}) (key string, ok bool, err error) {
	for k, c := range candidates {
		m, e := r.MatchesElement(c.LocalName, c.NS)
		if e != nil {
			return "", false, e
		}
		if m {
			return k, true, nil
		}
	}
	return "", false, nil
}

// Attribute returns the first attribute on the current start element whose
// local name matches and whose namespace is within nsID's set. NSNone
// matches unprefixed attributes.
func (r *Reader) Attribute(localName string, nsID NamespaceID) (string, bool) {
	if !r.curIsStart {
		return "", false
	}
	accepted, err := uris(nsID)
	if err != nil {
		return "", false
	}
	for _, attr := range r.cur.Attr {
		if attr.Name.Local != localName {
			continue
		}
		for _, u := range accepted {
			if attr.Name.Space == u {
				return attr.Value, true
			}
		}
	}
	return "", false
}

// Text reads and concatenates character data until the matching end
// element of the current start element is reached. It must be called
// immediately after a StartElement has been matched.
func (r *Reader) Text() (string, error) {
	if !r.curIsStart {
		return "", fmt.Errorf("xmlpull: Text called with no open start element")
	}
	name := r.cur.Name
	var sb []byte
	depth := 0
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return string(sb), err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb = append(sb, t...)
		case xml.StartElement:
			if t.Name == name {
				depth++
			}
		case xml.EndElement:
			if t.Name == name {
				if depth == 0 {
					return string(sb), nil
				}
				depth--
			}
		}
	}
}

// NextNS advances token by token until a StartElement matching localName
// and nsID is found, returning true, or returns false at EOF.
func (r *Reader) NextNS(localName string, nsID NamespaceID) (bool, error) {
	for r.Read() {
		m, err := r.MatchesElement(localName, nsID)
		if err != nil {
			return false, err
		}
		if m {
			return true, nil
		}
	}
	return false, nil
}

// InputOffset reports the decoder's current byte offset, for diagnostics.
func (r *Reader) InputOffset() int64 {
	return r.dec.InputOffset()
}

// Skip discards the remainder of the current element (its children and
// end tag), leaving the reader positioned as if that element had never
// been entered.
func (r *Reader) Skip() error {
	return r.dec.Skip()
}
