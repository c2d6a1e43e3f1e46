package shared

import "fmt"

// SecurityLevel selects one of the built-in policy and sandbox presets.
type SecurityLevel string

const (
	LevelParanoid   SecurityLevel = "paranoid"
	LevelStrict     SecurityLevel = "strict"
	LevelModerate   SecurityLevel = "moderate"
	LevelPermissive SecurityLevel = "permissive"
)

// ParseSecurityLevel validates a level name.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch SecurityLevel(NormalizeName(s)) {
	case LevelParanoid:
		return LevelParanoid, nil
	case LevelStrict:
		return LevelStrict, nil
	case LevelModerate:
		return LevelModerate, nil
	case LevelPermissive:
		return LevelPermissive, nil
	default:
		return "", fmt.Errorf("%w: unknown security level %q", ErrInvalidInput, s)
	}
}
