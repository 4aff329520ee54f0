package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the type of a settable field.
type Kind int

// Field kinds.
const (
	KindInt Kind = iota
	KindInt64
	KindFloat
	KindBool
	KindString
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindFloat:
		return "float64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is the set of Go types a field can hold.
type Value interface {
	int | int64 | float64 | bool | string
}

// Field is a named, typed, settable attribute of a Node.
//
// Fields are created with Bind or Func, never by reflection, so the set of
// addressable attributes is exactly what each component declares.
type Field struct {
	Name string
	Kind Kind

	// Structural fields invalidate the owning component: the owner must be
	// rebuilt after the field changes. Non-structural fields take effect in
	// place.
	Structural bool

	get    func() any
	set    func(any)
	coerce func(any) (any, error)
	check  func(any) error
}

// Bind creates a field backed by the variable p.
func Bind[T Value](name string, p *T) Field {
	return Func(name, func() T { return *p }, func(v T) { *p = v })
}

// Func creates a field backed by a getter and setter pair.
//
// Use it when setting a value must reach into another object, for example
// updating an optimizer's learning rate in place.
func Func[T Value](name string, get func() T, set func(T)) Field {
	return Field{
		Name:   name,
		Kind:   kindOf[T](),
		get:    func() any { return get() },
		set:    func(v any) { set(v.(T)) },
		coerce: func(v any) (any, error) { return Coerce[T](v) },
	}
}

// AsStructural returns a copy of f marked structural.
func (f Field) AsStructural() Field {
	f.Structural = true
	return f
}

// WithCheck returns a copy of f that validates values with fn before they
// are applied. fn receives a value already coerced to the field's type.
func (f Field) WithCheck(fn func(v any) error) Field {
	prev := f.check
	f.check = func(v any) error {
		if prev != nil {
			if err := prev(v); err != nil {
				return err
			}
		}
		return fn(v)
	}
	return f
}

// Get returns the current value.
func (f Field) Get() any {
	return f.get()
}

// prepare coerces and validates v without applying it.
func (f Field) prepare(v any) (any, error) {
	out, err := f.coerce(v)
	if err != nil {
		return nil, err
	}
	if f.check != nil {
		if err := f.check(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Positive rejects numeric values <= 0.
func Positive(v any) error {
	switch x := v.(type) {
	case int:
		if x <= 0 {
			return fmt.Errorf("must be > 0 (got %d)", x)
		}
	case int64:
		if x <= 0 {
			return fmt.Errorf("must be > 0 (got %d)", x)
		}
	case float64:
		if x <= 0 {
			return fmt.Errorf("must be > 0 (got %g)", x)
		}
	}
	return nil
}

// NonNegative rejects numeric values < 0.
func NonNegative(v any) error {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return fmt.Errorf("must be >= 0 (got %d)", x)
		}
	case int64:
		if x < 0 {
			return fmt.Errorf("must be >= 0 (got %d)", x)
		}
	case float64:
		if x < 0 {
			return fmt.Errorf("must be >= 0 (got %g)", x)
		}
	}
	return nil
}

// Fraction rejects floats outside [0, 1).
func Fraction(v any) error {
	if x, ok := v.(float64); ok && (x < 0 || x >= 1) {
		return fmt.Errorf("must be in [0, 1) (got %g)", x)
	}
	return nil
}

// OneOf rejects strings outside choices.
func OneOf(choices ...string) func(any) error {
	return func(v any) error {
		s, _ := v.(string)
		for _, c := range choices {
			if s == c {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s (got %q)", strings.Join(choices, ", "), s)
	}
}

func kindOf[T Value]() Kind {
	var zero T
	switch any(zero).(type) {
	case int:
		return KindInt
	case int64:
		return KindInt64
	case float64:
		return KindFloat
	case bool:
		return KindBool
	default:
		return KindString
	}
}

// Coerce converts v to T.
//
// Strings are parsed, so values coming from flags or YAML documents can be
// assigned to numeric and boolean fields. Floats convert to integers only
// when they are integral.
func Coerce[T Value](v any) (T, error) {
	var zero T
	var out any
	var err error

	switch any(zero).(type) {
	case int:
		var n int64
		n, err = toInt64(v)
		out = int(n)
	case int64:
		out, err = toInt64(v)
	case float64:
		out, err = toFloat64(v)
	case bool:
		out, err = toBool(v)
	case string:
		s, ok := v.(string)
		if !ok {
			err = fmt.Errorf("expected string, got %T", v)
		}
		out = s
	}
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("expected integer, got %g", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("expected bool, got %q", x)
		}
		return b, nil
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}
