package dialect

import (
	"regexp"

	"sqlgate/internal/action"
)

// maxIdentifierLen matches the MySQL limit, the tightest of the three
// engines.
const maxIdentifierLen = 64

// identPattern is the allowed identifier charset. Quotes, backticks,
// semicolons and whitespace all fall outside it, so a name that matches can
// never alter the syntax of a statement it is embedded in.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// quoteIdentifier validates name against the allow-list and wraps it in the
// engine quote character. Rejection, not escaping: a name that fails the
// pattern is refused outright.
func quoteIdentifier(name string, quote byte) (string, error) {
	if len(name) == 0 || len(name) > maxIdentifierLen || !identPattern.MatchString(name) {
		return "", action.Errorf(action.KindInvalidIdentifier, "invalid identifier: %q", name)
	}
	return string(quote) + name + string(quote), nil
}
