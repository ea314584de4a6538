package export

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Error codes returned for rejected backup documents.
const (
	CodeMalformedJSON                 = "MALFORMED_JSON"
	CodeInvalidJSONFormat             = "INVALID_JSON_FORMAT"
	CodeMissingTablesProperty         = "MISSING_TABLES_PROPERTY"
	CodeInvalidTableData              = "INVALID_TABLE_DATA"
	CodeInvalidRoomData               = "INVALID_ROOM_DATA"
	CodeInvalidDeviceData             = "INVALID_DEVICE_DATA"
	CodeInvalidAudioLevelData         = "INVALID_AUDIO_LEVEL_DATA"
	CodeInvalidWeatherSettingsData    = "INVALID_WEATHER_SETTINGS_DATA"
	CodeInvalidAppearanceSettingsData = "INVALID_APPEARANCE_SETTINGS_DATA"
)

// ValidationError is returned when a backup document is rejected before any
// data is modified.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Timestamp is a time value in a backup document. It accepts RFC 3339 as
// well as the SQL CURRENT_TIMESTAMP layout, with or without the T separator.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := parseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// RoomRow is a room as it appears in a backup document.
type RoomRow struct {
	ID        *int64     `json:"id"`
	Name      *string    `json:"name" validate:"required,min=1"`
	CreatedAt *Timestamp `json:"createdAt"`
}

// DeviceRow is a device as it appears in a backup document.
type DeviceRow struct {
	ID          *int64     `json:"id"`
	RoomID      *int64     `json:"roomId" validate:"required"`
	Name        *string    `json:"name" validate:"required"`
	Type        *string    `json:"type" validate:"required"`
	Status      *bool      `json:"status"`
	LastUpdated *Timestamp `json:"lastUpdated"`
}

// AudioLevelRow is an audio level sample as it appears in a backup document.
type AudioLevelRow struct {
	ID        *int64     `json:"id"`
	DeviceID  *int64     `json:"deviceId" validate:"required"`
	Level     *int       `json:"level" validate:"required"`
	Timestamp *Timestamp `json:"timestamp" validate:"required"`
}

// WeatherSettingsRow is a weather settings row as it appears in a backup document.
type WeatherSettingsRow struct {
	ID        *int64     `json:"id"`
	Provider  *string    `json:"provider" validate:"required"`
	APIKey    *string    `json:"apiKey"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Units     *string    `json:"units" validate:"required"`
	City      *string    `json:"city"`
	Country   *string    `json:"country"`
	Zip       *string    `json:"zip"`
	UpdatedAt *Timestamp `json:"updatedAt"`
}

// AppearanceSettingsRow is an appearance settings row as it appears in a backup document.
type AppearanceSettingsRow struct {
	ID              *int64     `json:"id"`
	Mode            *string    `json:"mode" validate:"required"`
	ScreenSize      *string    `json:"screenSize" validate:"required"`
	Width           *int       `json:"width" validate:"required"`
	Height          *int       `json:"height" validate:"required"`
	BackgroundColor *string    `json:"backgroundColor" validate:"required"`
	UpdatedAt       *Timestamp `json:"updatedAt"`
}

// Payload is a fully validated backup document ready to be restored.
type Payload struct {
	Rooms              []RoomRow
	Devices            []DeviceRow
	AudioLevels        []AudioLevelRow
	WeatherSettings    []WeatherSettingsRow
	AppearanceSettings []AppearanceSettingsRow
}

// timestampLayouts are the accepted formats for Timestamp values.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var rowValidator = newRowValidator()

func newRowValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseDocument decodes and validates a backup document. Every structural and
// per-row check runs here, so a nil error means the payload can be restored
// without further validation. Rejections are returned as *ValidationError.
func ParseDocument(body []byte) (*Payload, error) {
	if !json.Valid(body) {
		return nil, invalid(CodeMalformedJSON, "request body is not valid JSON")
	}
	if !isJSONObject(body) {
		return nil, invalid(CodeInvalidJSONFormat, "backup must be a JSON object")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, invalid(CodeInvalidJSONFormat, "backup must be a JSON object: %v", err)
	}

	rawTables, ok := top["tables"]
	if !ok || !isJSONObject(rawTables) {
		return nil, invalid(CodeMissingTablesProperty, "backup is missing the tables object")
	}

	var tables map[string]json.RawMessage
	if err := json.Unmarshal(rawTables, &tables); err != nil {
		return nil, invalid(CodeMissingTablesProperty, "backup tables must be an object: %v", err)
	}

	for _, key := range RequiredTables {
		raw, ok := tables[key]
		if !ok || !isJSONArray(raw) {
			return nil, invalid(CodeInvalidTableData, "tables.%s must be an array", key)
		}
	}

	payload := &Payload{}
	var err error
	if payload.Rooms, err = decodeRows[RoomRow](tables[TableRooms], TableRooms, CodeInvalidRoomData); err != nil {
		return nil, err
	}
	if payload.Devices, err = decodeRows[DeviceRow](tables[TableDevices], TableDevices, CodeInvalidDeviceData); err != nil {
		return nil, err
	}
	if payload.AudioLevels, err = decodeRows[AudioLevelRow](tables[TableAudioLevels], TableAudioLevels, CodeInvalidAudioLevelData); err != nil {
		return nil, err
	}
	if payload.WeatherSettings, err = decodeRows[WeatherSettingsRow](tables[TableWeatherSettings], TableWeatherSettings, CodeInvalidWeatherSettingsData); err != nil {
		return nil, err
	}
	if payload.AppearanceSettings, err = decodeRows[AppearanceSettingsRow](tables[TableAppearanceSettings], TableAppearanceSettings, CodeInvalidAppearanceSettingsData); err != nil {
		return nil, err
	}

	return payload, nil
}

// decodeRows decodes a JSON array into typed rows, validating each one.
func decodeRows[T any](raw json.RawMessage, table, code string) ([]T, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalid(CodeInvalidTableData, "tables.%s must be an array", table)
	}

	rows := make([]T, len(items))
	for i, item := range items {
		if !isJSONObject(item) {
			return nil, invalid(code, "%s[%d]: row must be an object", table, i)
		}
		if err := decodeRow(item, &rows[i]); err != nil {
			return nil, invalid(code, "%s[%d]: %v", table, i, err)
		}
		if err := rowValidator.Struct(&rows[i]); err != nil {
			return nil, invalid(code, "%s[%d]: %s", table, i, describeValidationError(err))
		}
	}
	return rows, nil
}

// decodeRow fills the pointer fields of dst one JSON key at a time. Keys
// match json tags exactly, and absent or null keys leave the field nil.
func decodeRow(raw json.RawMessage, dst any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return errors.New("row must be an object")
	}

	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name := jsonName(sf)
		if !sf.IsExported() || name == "" || sf.Type.Kind() != reflect.Pointer {
			continue
		}
		value := bytes.TrimSpace(fields[name])
		if len(value) == 0 || bytes.Equal(value, []byte("null")) {
			continue
		}

		elem := sf.Type.Elem()
		if !literalMatches(elem, value) {
			return fmt.Errorf("field %q must be %s", name, jsonKind(elem))
		}
		ptr := reflect.New(elem)
		if err := json.Unmarshal(value, ptr.Interface()); err != nil {
			return fmt.Errorf("field %q must be %s", name, jsonKind(elem))
		}
		v.Field(i).Set(ptr)
	}
	return nil
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// literalMatches reports whether a JSON literal has the shape t decodes from.
func literalMatches(t reflect.Type, value []byte) bool {
	if t == timestampType {
		return value[0] == '"'
	}
	switch t.Kind() {
	case reflect.String:
		return value[0] == '"'
	case reflect.Bool:
		return value[0] == 't' || value[0] == 'f'
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return isIntegerLiteral(value)
	case reflect.Float32, reflect.Float64:
		return value[0] == '-' || (value[0] >= '0' && value[0] <= '9')
	default:
		return true
	}
}

func isIntegerLiteral(value []byte) bool {
	digits := bytes.TrimPrefix(value, []byte("-"))
	if len(digits) == 0 {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func describeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field %q is required", fe.Field())
	case "min":
		return fmt.Sprintf("field %q must not be empty", fe.Field())
	default:
		return fmt.Sprintf("field %q failed %q validation", fe.Field(), fe.Tag())
	}
}

var timestampType = reflect.TypeOf(Timestamp{})

func jsonKind(t reflect.Type) string {
	if t == timestampType {
		return "a timestamp string"
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	default:
		return "a valid " + t.Kind().String()
	}
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func isJSONObject(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isJSONArray(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
