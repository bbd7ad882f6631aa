package zwave

import (
	"fmt"
	"math"
	"strconv"
)

// ReadValue reads v's current scalar through the accessor matching its
// kind. Buttons have no scalar and yield (nil, nil); lists yield the label of
// the current selection. Schedule, raw and unknown kinds return
// ErrUnsupportedKind.
func ReadValue(r ValueReader, v ValueID) (any, error) {
	switch v.Kind {
	case KindBool:
		return r.ValueAsBool(v)
	case KindByte:
		return r.ValueAsByte(v)
	case KindShort:
		return r.ValueAsShort(v)
	case KindInt:
		return r.ValueAsInt(v)
	case KindDecimal:
		return r.ValueAsFloat(v)
	case KindString:
		return r.ValueAsString(v)
	case KindList:
		return r.ValueListSelection(v)
	case KindButton:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, v.Kind)
	}
}

// WriteValue converts value to v's kind and calls the matching setter.
// Numbers may arrive as any Go numeric type or as a decoded JSON float64;
// strings holding numbers are accepted too. For buttons a true value presses
// and false releases.
func WriteValue(w ValueWriter, v ValueID, value any) error {
	switch v.Kind {
	case KindBool:
		b, err := toBool(value)
		if err != nil {
			return err
		}
		return w.SetValueBool(v, b)

	case KindByte:
		n, err := toInt(value, 0, math.MaxUint8)
		if err != nil {
			return err
		}
		return w.SetValueByte(v, uint8(n))

	case KindShort:
		n, err := toInt(value, math.MinInt16, math.MaxInt16)
		if err != nil {
			return err
		}
		return w.SetValueShort(v, int16(n))

	case KindInt:
		n, err := toInt(value, math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		return w.SetValueInt(v, int32(n))

	case KindDecimal:
		f, err := toFloat(value)
		if err != nil {
			return err
		}
		return w.SetValueFloat(v, f)

	case KindString:
		return w.SetValueString(v, fmt.Sprint(value))

	case KindList:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: list selection must be a string, got %T", ErrInvalidValue, value)
		}
		return w.SetValueListSelection(v, s)

	case KindButton:
		press, err := toBool(value)
		if err != nil {
			return err
		}
		if press {
			return w.PressButton(v)
		}
		return w.ReleaseButton(v)

	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, v.Kind)
	}
}

func toBool(value any) (bool, error) {
	switch x := value.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, x)
		}
		return b, nil
	default:
		f, err := toFloat(value)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}

func toFloat(value any) (float64, error) {
	switch x := value.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unexpected %T", ErrInvalidValue, value)
	}
}

func toInt(value any, lo, hi int64) (int64, error) {
	f, err := toFloat(value)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not a whole number", ErrInvalidValue, f)
	}
	if f < float64(lo) || f > float64(hi) {
		return 0, fmt.Errorf("%w: %v outside %d..%d", ErrInvalidValue, f, lo, hi)
	}
	return int64(f), nil
}
