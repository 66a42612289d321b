package xatomic

import (
	"regexp"
	"strings"

	"github.com/oxhq/morfx/internal/xerrors"
)

// Whitespace facet per XML Schema: preserve (untouched), replace (tab/lf/cr
// -> space), collapse (replace, then trim + compress internal runs).
type whitespaceFacet int

const (
	wsPreserve whitespaceFacet = iota
	wsReplace
	wsCollapse
)

var stringFacet = map[Tag]whitespaceFacet{
	TagString:           wsPreserve,
	TagNormalizedString: wsReplace,
	TagToken:            wsCollapse,
	TagLanguage:         wsCollapse,
	TagName:             wsCollapse,
	TagNCName:           wsCollapse,
	TagNMToken:          wsCollapse,
	TagID:               wsCollapse,
	TagIDREF:            wsCollapse,
	TagENTITY:           wsCollapse,
	TagAnyURI:           wsCollapse,
}

func applyWhitespaceFacet(tag Tag, s string) string {
	switch stringFacet[tag] {
	case wsReplace:
		return replaceWhitespace(s)
	case wsCollapse:
		return collapseWhitespace(s)
	default:
		return s
	}
}

func replaceWhitespace(s string) string {
	r := strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")
	return r.Replace(s)
}

func collapseWhitespace(s string) string {
	s = replaceWhitespace(s)
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// XML 1.1 NameStartChar/NameChar production, simplified to the ASCII +
// common Unicode-letter ranges the conformance scenarios in spec §8 need.
// NCName is Name with the colon removed from both start and continuation.
const nameStartChar = `A-Za-z_\x{00C0}-\x{00D6}\x{00D8}-\x{00F6}\x{00F8}-\x{02FF}\x{0370}-\x{037D}\x{037F}-\x{1FFF}\x{200C}-\x{200D}\x{2070}-\x{218F}\x{2C00}-\x{2FEF}\x{3001}-\x{D7FF}\x{F900}-\x{FDCF}\x{FDF0}-\x{FFFD}`
const nameChar = nameStartChar + `\-.0-9\x{00B7}\x{0300}-\x{036F}\x{203F}-\x{2040}`

var (
	nameRE   = regexp.MustCompile(`^[` + nameStartChar + `:][` + nameChar + `:]*$`)
	ncNameRE = regexp.MustCompile(`^[` + nameStartChar + `][` + nameChar + `]*$`)
	// NMTOKEN allows any NameChar (including leading digit/colon/dot).
	nmtokenRE  = regexp.MustCompile(`^[` + nameChar + `:]+$`)
	languageRE = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)
	anyURIRE   = regexp.MustCompile(`^[^\s<>"{}|\\^` + "`" + `]*$`)
)

// ValidateStringFamily checks a whitespace-normalized string subtype value
// against its XML grammar, as required by spec §4.5's cast rules.
func ValidateStringFamily(tag Tag, s string) error {
	switch tag {
	case TagName, TagID, TagIDREF, TagENTITY:
		if !nameRE.MatchString(s) {
			return xerrors.Newf(xerrors.FORG0001, "%q is not a valid xs:Name", s)
		}
	case TagNCName:
		if !ncNameRE.MatchString(s) {
			return xerrors.Newf(xerrors.FORG0001, "%q is not a valid xs:NCName", s)
		}
	case TagNMToken:
		if !nmtokenRE.MatchString(s) {
			return xerrors.Newf(xerrors.FORG0001, "%q is not a valid xs:NMTOKEN", s)
		}
	case TagLanguage:
		if !languageRE.MatchString(s) {
			return xerrors.Newf(xerrors.FORG0001, "%q is not a valid xs:language tag", s)
		}
	case TagAnyURI:
		if !anyURIRE.MatchString(s) {
			return xerrors.Newf(xerrors.FORG0001, "%q is not a valid xs:anyURI", s)
		}
	case TagToken, TagNormalizedString, TagString:
		// no grammar beyond whitespace normalization
	}
	return nil
}

// CastToStringFamily applies the whitespace facet then validates, producing
// the canonical stored value for a string-family target type.
func CastToStringFamily(tag Tag, s string) (Value, error) {
	normalized := applyWhitespaceFacet(tag, s)
	if err := ValidateStringFamily(tag, normalized); err != nil {
		return Value{}, err
	}
	return NewString(tag, normalized), nil
}
