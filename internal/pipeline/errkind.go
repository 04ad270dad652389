package pipeline

import "errors"

// KindInternal marks failures no typed error claims. Everything the domain
// packages return carries its own stable kind tag.
const KindInternal = "internal"

// ErrKind extracts the stable error kind from any error the pipeline
// returns, for transports that report kinds instead of Go types.
func ErrKind(err error) string {
	if err == nil {
		return ""
	}
	var kinder interface{ Kind() string }
	if errors.As(err, &kinder) {
		return kinder.Kind()
	}
	return KindInternal
}
