package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/elee1766/orbital/src/aisdk"
)

// Images is a list of message images stored as a JSON array column.
type Images []aisdk.Image

// Scan implements the sql.Scanner interface for Images
func (j *Images) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case string:
		return j.unmarshal([]byte(v))
	case []byte:
		return j.unmarshal(v)
	default:
		return fmt.Errorf("cannot scan type %T into Images", value)
	}
}

func (j *Images) unmarshal(data []byte) error {
	if len(data) == 0 || string(data) == "[]" || string(data) == "null" {
		*j = nil
		return nil
	}
	return json.Unmarshal(data, (*[]aisdk.Image)(j))
}

// Value implements the driver.Valuer interface for Images
func (j Images) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]aisdk.Image(j))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
