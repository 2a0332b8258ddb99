package progress

import (
	"reflect"
	"runtime"
	"strings"
)

// Func is a callable that carries a name. Decorating a Func keeps its name, so
// that further wrapping layers can still tell which function they wrap.
type Func[A, R any] struct {
	name string
	fn   func(A) (R, error)
}

// NewFunc names a function.
func NewFunc[A, R any](name string, fn func(A) (R, error)) Func[A, R] {
	if fn == nil {
		panic("function must not be nil")
	}

	return Func[A, R]{name: name, fn: fn}
}

// Name returns the name of the wrapped function.
func (f Func[A, R]) Name() string {
	return f.name
}

// Call invokes the function.
func (f Func[A, R]) Call(arg A) (R, error) {
	return f.fn(arg)
}

// Decorate returns a Func that runs f inside a context named contextName,
// opened in thread t for every call. If contextName is empty, the name of f is
// used. The result and the error of f are returned unchanged, and a panic in f
// propagates after the context is closed.
func Decorate[A, R any](t *Thread, f Func[A, R], contextName string) Func[A, R] {
	if contextName == "" {
		contextName = f.name
	}

	return Func[A, R]{
		name: f.name,
		fn: func(arg A) (R, error) {
			c := t.Open(contextName)
			defer c.Close()

			return f.fn(arg)
		},
	}
}

// Wrap decorates fn with a context named after the function itself.
func Wrap[A, R any](t *Thread, fn func(A) (R, error)) Func[A, R] {
	return Decorate(t, NewFunc(NameOf(fn), fn), "")
}

// NameOf returns the short name of a function, without its package path, for
// example "parseFile" or "(*Loader).Load". It returns an empty string for
// anything that is not a function.
func NameOf(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}

	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}

	name := f.Name()
	if slash := strings.LastIndex(name, "/"); slash >= 0 {
		name = name[slash+1:]
	}

	if dot := strings.Index(name, "."); dot >= 0 {
		name = name[dot+1:]
	}

	return strings.TrimSuffix(name, "-fm")
}
