package sql

import (
	"fmt"
	"regexp"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/wenshu-inc/wenshu-engine/pkg/apperrors"
)

const maxIdentifierLength = 128

// identifierPattern allows an optional schema prefix and non-ASCII letters, which
// Chinese-named tables need.
var identifierPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_$]*(\.[\p{L}_][\p{L}\p{N}_$]*)?$`)

// CheckIdentifier screens a table name supplied by an untrusted caller before it is
// looked up against the live table list. Returns an error wrapping
// apperrors.ErrInvalidInput when the name is malformed or matches a libinjection
// fingerprint.
func CheckIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: identifier is empty", apperrors.ErrInvalidInput)
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("%w: identifier exceeds %d bytes", apperrors.ErrInvalidInput, maxIdentifierLength)
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(name); isSQLi {
		return fmt.Errorf("%w: identifier %q matches injection pattern %s",
			apperrors.ErrInvalidInput, name, string(fingerprint))
	}

	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid identifier", apperrors.ErrInvalidInput, name)
	}
	return nil
}
