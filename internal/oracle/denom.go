package oracle

import "regexp"

// DenomValidator reports whether a denom is syntactically valid.
type DenomValidator func(denom string) bool

// Native denoms start with a letter and may contain letters, digits and / : . _ -
var nativeDenomPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{0,127}$`)

// ValidNativeDenom is the default DenomValidator.
func ValidNativeDenom(denom string) bool {
	return nativeDenomPattern.MatchString(denom)
}
