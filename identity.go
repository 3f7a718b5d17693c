package diskmemo

import (
	"fmt"
	"reflect"
)

// IdentityFunc turns call arguments into a fingerprint. It must be pure:
// equal arguments give equal fingerprints.
type IdentityFunc[A any] func(args A) string

// DefaultIdentity fingerprints by the first positional argument: the first
// element when A is a slice or array, otherwise the argument itself.
func DefaultIdentity[A any](args A) string {
	rv := reflect.ValueOf(args)
	if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		if rv.Len() == 0 {
			return ""
		}
		return render(rv.Index(0).Interface())
	}
	return render(args)
}

// FirstArg fingerprints an untyped argument list by its first element.
func FirstArg(args []any) string {
	if len(args) == 0 {
		return ""
	}
	return render(args[0])
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
