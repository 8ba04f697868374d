// Package location canonicalizes place names and scores two addresses
// across the country/state/city/neighborhood hierarchy.
package location

import "strings"

// accentFolder strips the Spanish diacritics seen in the data. Input is
// lower-cased first, so upper-case forms fold through the same table.
var accentFolder = strings.NewReplacer(
	"á", "a",
	"é", "e",
	"í", "i",
	"ó", "o",
	"ú", "u",
	"ü", "u",
	"ñ", "n",
)

// defaultAliases maps known city spellings to their canonical form.
var defaultAliases = map[string]string{
	"bogota":       "bogota",
	"medellin":     "medellin",
	"cali":         "cali",
	"barranquilla": "barranquilla",
	"cartagena":    "cartagena",
}

// Normalizer folds raw place names into a comparable form.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer returns a Normalizer with the built-in alias table plus any
// extra entries. Extra keys and values are normalized before they are stored.
func NewNormalizer(extra map[string]string) *Normalizer {
	n := &Normalizer{aliases: make(map[string]string, len(defaultAliases)+len(extra))}
	for k, v := range defaultAliases {
		n.aliases[k] = v
	}
	for k, v := range extra {
		key := fold(k)
		if key == "" {
			continue
		}
		n.aliases[key] = fold(v)
	}
	return n
}

// Normalize trims, lower-cases, strips diacritics and resolves aliases.
// Blank input yields "".
func (n *Normalizer) Normalize(raw string) string {
	s := fold(raw)
	if s == "" {
		return ""
	}
	if canonical, ok := n.aliases[s]; ok {
		return canonical
	}
	return s
}

func fold(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	return accentFolder.Replace(strings.ToLower(s))
}
