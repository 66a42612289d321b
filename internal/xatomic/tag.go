// Package xatomic implements the atomic value model: tagged variants for
// every XSD primitive/derived type XPath cares about, canonical string
// representations, and the numeric promotion lattice used by arithmetic and
// comparison.
package xatomic

// Tag identifies an atomic value's XSD type. Derived types share a payload
// shape with their base (e.g. all integer-family tags carry a *big.Int) but
// are range-checked against their own bound on cast.
type Tag uint16

const (
	TagUntyped Tag = iota

	// string family
	TagString
	TagNormalizedString
	TagToken
	TagLanguage
	TagName
	TagNCName
	TagNMToken
	TagID
	TagIDREF
	TagENTITY
	TagAnyURI

	TagBoolean

	TagDecimal

	// integer family — all backed by *big.Int, range-checked on cast
	TagInteger
	TagNonPositiveInteger
	TagNegativeInteger
	TagLong
	TagInt
	TagShort
	TagByte
	TagNonNegativeInteger
	TagUnsignedLong
	TagUnsignedInt
	TagUnsignedShort
	TagUnsignedByte
	TagPositiveInteger

	TagFloat
	TagDouble

	TagDate
	TagTime
	TagDateTime

	TagYearMonthDuration
	TagDayTimeDuration

	TagHexBinary
	TagBase64Binary

	TagQName
)

// IsStringFamily reports whether t is one of the whitespace-and-grammar
// validated string subtypes enumerated in spec §4.5.
func IsStringFamily(t Tag) bool {
	switch t {
	case TagString, TagNormalizedString, TagToken, TagLanguage, TagName,
		TagNCName, TagNMToken, TagID, TagIDREF, TagENTITY, TagAnyURI:
		return true
	}
	return false
}

// IsIntegerFamily reports whether t is xs:integer or one of its derived
// range-restricted subtypes.
func IsIntegerFamily(t Tag) bool {
	switch t {
	case TagInteger, TagNonPositiveInteger, TagNegativeInteger, TagLong,
		TagInt, TagShort, TagByte, TagNonNegativeInteger, TagUnsignedLong,
		TagUnsignedInt, TagUnsignedShort, TagUnsignedByte, TagPositiveInteger:
		return true
	}
	return false
}

// IsNumeric reports whether t participates in the numeric promotion lattice.
func IsNumeric(t Tag) bool {
	return IsIntegerFamily(t) || t == TagDecimal || t == TagFloat || t == TagDouble
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "unknown"
}

var tagByName map[string]Tag

func init() {
	tagByName = make(map[string]Tag, len(tagNames))
	for t, n := range tagNames {
		tagByName[n] = t
	}
}

// TagByName resolves a canonical type name ("xs:integer", "xs:string", ...)
// to its Tag, used by cast/castable/instance-of lowering where the target
// type arrives as a name string from the parser.
func TagByName(name string) (Tag, bool) {
	t, ok := tagByName[name]
	return t, ok
}

var tagNames = map[Tag]string{
	TagUntyped:             "xs:untypedAtomic",
	TagString:              "xs:string",
	TagNormalizedString:    "xs:normalizedString",
	TagToken:                "xs:token",
	TagLanguage:            "xs:language",
	TagName:                "xs:Name",
	TagNCName:              "xs:NCName",
	TagNMToken:             "xs:NMTOKEN",
	TagID:                  "xs:ID",
	TagIDREF:               "xs:IDREF",
	TagENTITY:              "xs:ENTITY",
	TagAnyURI:              "xs:anyURI",
	TagBoolean:             "xs:boolean",
	TagDecimal:             "xs:decimal",
	TagInteger:             "xs:integer",
	TagNonPositiveInteger:  "xs:nonPositiveInteger",
	TagNegativeInteger:     "xs:negativeInteger",
	TagLong:                "xs:long",
	TagInt:                 "xs:int",
	TagShort:               "xs:short",
	TagByte:                "xs:byte",
	TagNonNegativeInteger:  "xs:nonNegativeInteger",
	TagUnsignedLong:        "xs:unsignedLong",
	TagUnsignedInt:         "xs:unsignedInt",
	TagUnsignedShort:       "xs:unsignedShort",
	TagUnsignedByte:        "xs:unsignedByte",
	TagPositiveInteger:     "xs:positiveInteger",
	TagFloat:               "xs:float",
	TagDouble:              "xs:double",
	TagDate:                "xs:date",
	TagTime:                "xs:time",
	TagDateTime:            "xs:dateTime",
	TagYearMonthDuration:   "xs:yearMonthDuration",
	TagDayTimeDuration:     "xs:dayTimeDuration",
	TagHexBinary:           "xs:hexBinary",
	TagBase64Binary:        "xs:base64Binary",
	TagQName:               "xs:QName",
}
