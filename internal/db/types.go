package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteTimeFormat is the layout of datetime('now') and of stored timestamps.
// Stored times are always UTC so they sort and compare as text.
const SQLiteTimeFormat = "2006-01-02 15:04:05"

// Older rows and hand-edited databases may carry RFC 3339 text.
var timeLayouts = []string{SQLiteTimeFormat, time.RFC3339Nano}

// columnText returns the text of a TEXT column as delivered by the driver.
// ok is false for NULL and for the empty string.
func columnText(value any, into string) (text string, ok bool, err error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return "", false, fmt.Errorf("cannot scan %T into %s", value, into)
	}
	return text, text != "", nil
}

// JSONMap is the details column of a probe result: a JSON object, or NULL
// for results without details.
type JSONMap map[string]any

func (j *JSONMap) Scan(value any) error {
	text, ok, err := columnText(value, "JSONMap")
	if err != nil || !ok {
		*j = nil
		return err
	}
	return json.Unmarshal([]byte(text), j)
}

func (j JSONMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return string(data), nil
}

// NullTime is a run timestamp column.
type NullTime struct {
	Time  time.Time
	Valid bool
}

func (t *NullTime) Scan(value any) error {
	*t = NullTime{}
	text, ok, err := columnText(value, "NullTime")
	if err != nil || !ok {
		return err
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			*t = NullTime{Time: parsed, Valid: true}
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", text)
}

func (t NullTime) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time.UTC().Format(SQLiteTimeFormat), nil
}

// At returns a valid NullTime for tm.
func At(tm time.Time) NullTime {
	return NullTime{Time: tm, Valid: true}
}
