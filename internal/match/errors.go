package match

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSide       = errors.New("unknown side")
	ErrUnknownField      = errors.New("unknown field")
	ErrDerivedField      = errors.New("field is derived and cannot be set")
	ErrCardIndex         = errors.New("initiative card index out of range")
	ErrUnknownCommitment = errors.New("unknown secret commitment")
	ErrUnknownOption     = errors.New("unknown option")
	ErrSecretCommitted   = errors.New("secret is already committed")
	ErrSecretsRevealed   = errors.New("secrets are revealed")
	ErrNotRevealed       = errors.New("secret is not revealed yet")
	ErrInvalidRow        = errors.New("invalid kill ops row")
	ErrImport            = errors.New("import failed")
)

// ImportError reports why a document could not be imported. The match is
// never modified when one is returned.
type ImportError struct {
	Path string
	Err  error
}

func (e *ImportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("import: %v", e.Err)
	}
	return fmt.Sprintf("import %s: %v", e.Path, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Is lets callers match any import failure with errors.Is(err, ErrImport).
func (e *ImportError) Is(target error) bool { return target == ErrImport }

func importErr(path string, err error) error {
	return &ImportError{Path: path, Err: err}
}
