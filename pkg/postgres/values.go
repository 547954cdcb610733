package postgres

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Layouts used when a temporal value is stringified
const (
	DateLayout        = "2006-01-02"
	TimestampLayout   = "2006-01-02 15:04:05.999999"
	TimestampTZLayout = "2006-01-02 15:04:05.999999-07:00"
)

// ConvertValue converts a decoded column value to something with a stable
// JSON form. Integers, floats, booleans, strings and JSON documents pass
// through; numerics, temporal values, bytes and other driver types become
// strings.
func ConvertValue(value interface{}, oid uint32) interface{} {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case int16, int32, int64, int, float32, float64, bool, string:
		return v
	case map[string]interface{}, []interface{}:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return formatTime(v, oid)
	case [16]byte:
		return uuid.UUID(v).String()
	case pgtype.Numeric:
		return numericString(v)
	case pgtype.Time:
		if !v.Valid {
			return nil
		}
		d := time.Duration(v.Microseconds) * time.Microsecond
		return time.Time{}.Add(d).Format("15:04:05.999999")
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil || dv == nil {
			return nil
		}
		return ConvertValue(dv, oid)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatTime(t time.Time, oid uint32) string {
	switch oid {
	case pgtype.DateOID:
		return t.Format(DateLayout)
	case pgtype.TimestamptzOID:
		return t.Format(TimestampTZLayout)
	default:
		return t.Format(TimestampLayout)
	}
}

func numericString(n pgtype.Numeric) interface{} {
	if !n.Valid {
		return nil
	}
	v, err := n.Value()
	if err != nil || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
