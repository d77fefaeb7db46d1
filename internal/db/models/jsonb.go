package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Documents is a JSONB array of registration documents
type Documents []Document

// MediaFiles is a JSONB array of uploaded media references
type MediaFiles []MediaFile

// MediaFile references a file stored on the media host
type MediaFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

func (d Documents) Value() (driver.Value, error) { return marshalArray(d, len(d)) }

func (d *Documents) Scan(src interface{}) error { return scanJSON(src, d) }

func (m MediaFiles) Value() (driver.Value, error) { return marshalArray(m, len(m)) }

func (m *MediaFiles) Scan(src interface{}) error { return scanJSON(src, m) }

func (f MediaFile) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *MediaFile) Scan(src interface{}) error { return scanJSON(src, f) }

// marshalArray encodes nil and empty slices as "[]" so columns never hold JSON null
func marshalArray(v interface{}, n int) (driver.Value, error) {
	if n == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(src interface{}, dest interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
