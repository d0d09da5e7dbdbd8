package credits

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// SettingType selects how a stored setting value is decoded.
type SettingType string

const (
	SettingNumber  SettingType = "number"
	SettingBoolean SettingType = "boolean"
	SettingJSON    SettingType = "json"
	SettingString  SettingType = "string"
)

// Setting is one configuration entry. Values are stored as text and decoded
// on read according to DataType; unknown data types decode as raw text.
type Setting struct {
	Key      string
	Value    string
	DataType SettingType
}

// GetSetting reads one configuration entry. A missing key is an error, not a
// default value.
func (service *Service) GetSetting(ctx context.Context, key string) (Setting, error) {
	return service.store.GetSetting(ctx, key)
}

// Decode returns the typed value for the entry.
func (setting Setting) Decode() (any, error) {
	switch setting.DataType {
	case SettingNumber:
		number, err := strconv.ParseFloat(setting.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a number: %v", ErrInvalidSetting, setting.Key, err)
		}
		return number, nil
	case SettingBoolean:
		return setting.Value == "true", nil
	case SettingJSON:
		var decoded any
		if err := json.Unmarshal([]byte(setting.Value), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %s is not valid json: %v", ErrInvalidSetting, setting.Key, err)
		}
		return decoded, nil
	default:
		return setting.Value, nil
	}
}

// DecodeJSON unmarshals a json-typed setting into target.
func (setting Setting) DecodeJSON(target any) error {
	if setting.DataType != SettingJSON {
		return fmt.Errorf("%w: %s is %s, want json", ErrInvalidSetting, setting.Key, setting.DataType)
	}
	if err := json.Unmarshal([]byte(setting.Value), target); err != nil {
		return fmt.Errorf("%w: %s is not valid json: %v", ErrInvalidSetting, setting.Key, err)
	}
	return nil
}

// Credits decodes the entry as a non-negative whole credit amount.
func (setting Setting) Credits() (int64, error) {
	if setting.DataType != SettingNumber {
		return 0, fmt.Errorf("%w: %s is %s, want number", ErrInvalidSetting, setting.Key, setting.DataType)
	}
	number, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a number: %v", ErrInvalidSetting, setting.Key, err)
	}
	if number < 0 || number != math.Trunc(number) {
		return 0, fmt.Errorf("%w: %s must be a non-negative whole number", ErrInvalidSetting, setting.Key)
	}
	return int64(number), nil
}
