package transformation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Common transformation errors.
var (
	// ErrInvalidConfig indicates a malformed policy document.
	ErrInvalidConfig = errors.New("invalid transformation config")

	// ErrTemplateCompile indicates a template syntax error found while building the registry.
	ErrTemplateCompile = errors.New("template compilation failed")

	// ErrTemplateNotFound indicates a render call for a template that was never compiled.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateRender indicates a runtime template evaluation failure.
	ErrTemplateRender = errors.New("template rendering failed")

	// ErrUndeclaredJSONVariables indicates a template that references JSON
	// body fields while the body was not parsed as JSON.
	ErrUndeclaredJSONVariables = errors.New("undeclared json variables")

	// ErrBodyParse indicates that the message body could not be parsed as JSON.
	ErrBodyParse = errors.New("failed to parse body as json")
)

// UndeclaredJSONVariablesError lists the variables of a template that are
// neither library functions nor available without a parsed JSON body.
type UndeclaredJSONVariablesError struct {
	Variables []string
	Template  string
}

func (e *UndeclaredJSONVariablesError) Error() string {
	return fmt.Sprintf("%s: [%s] from template %s",
		ErrUndeclaredJSONVariables, strings.Join(e.Variables, ", "), e.Template)
}

// Is makes errors.Is match ErrUndeclaredJSONVariables.
func (e *UndeclaredJSONVariablesError) Is(target error) bool {
	return target == ErrUndeclaredJSONVariables
}

// BodyParseError wraps a JSON parse failure reported by the host.
type BodyParseError struct {
	Direction Direction
	Err       error
}

func (e *BodyParseError) Error() string {
	return fmt.Sprintf("%s: %s body: %v", ErrBodyParse, e.Direction, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *BodyParseError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match ErrBodyParse.
func (e *BodyParseError) Is(target error) bool {
	return target == ErrBodyParse
}

// IsCritical reports whether err must cause the host to reject the message
// instead of forwarding it with a partial transformation. A combined error
// of recoverable failures is never critical, even when one of them is an
// undeclared-variable failure of the body template.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	var combined *multierror.Error
	if errors.As(err, &combined) {
		return false
	}
	return errors.Is(err, ErrUndeclaredJSONVariables) || errors.Is(err, ErrBodyParse)
}

// combineErrors folds the recoverable errors of one transformation into a
// single error, or returns nil when there are none.
func combineErrors(prefix string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	combined := &multierror.Error{
		ErrorFormat: func(es []error) string {
			msgs := make([]string, len(es))
			for i, e := range es {
				msgs[i] = e.Error()
			}
			return prefix + ": " + strings.Join(msgs, "; ")
		},
	}
	combined = multierror.Append(combined, errs...)
	return combined.ErrorOrNil()
}
