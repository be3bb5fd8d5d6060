package effects

import "strings"

// Kind identifies one of the fixed photo effects
type Kind uint8

const (
	Normal Kind = iota
	Grayscale
	Sepia
	Blur
	Vintage
	Bright
	Dramatic

	kindCount
)

var kindNames = [kindCount]string{
	Normal:    "normal",
	Grayscale: "grayscale",
	Sepia:     "sepia",
	Blur:      "blur",
	Vintage:   "vintage",
	Bright:    "bright",
	Dramatic:  "dramatic",
}

// ParseKind normalizes an identifier. Unknown or empty names map to
// Normal, never an error.
func ParseKind(name string) Kind {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return Kind(k)
		}
	}
	return Normal
}

// Known reports whether name is one of the effect identifiers
func Known(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range kindNames {
		if n == name {
			return true
		}
	}
	return false
}

func (k Kind) String() string {
	if k >= kindCount {
		return kindNames[Normal]
	}
	return kindNames[k]
}

// Valid reports whether k is a member of the enumeration
func (k Kind) Valid() bool {
	return k < kindCount
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// Kinds lists every effect in display order
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}
