package domain

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// absoluteZeroC is 0 K expressed in Celsius.
	absoluteZeroC = 273.15

	// localTimeLayout renders naive local datetimes, e.g. "2023-11-14 23:13:20".
	localTimeLayout = "2006-01-02 15:04:05"

	// objectKeyLayout is DDMMYYYYHHMMSS.
	objectKeyLayout = "02012006150405"

	// ObjectKeyExt is appended to every object key.
	ObjectKeyExt = ".csv"
)

var validate = newValidator()

// newValidator reports field paths using JSON names, e.g. "main.temp".
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// KelvinToCelsius converts k to Celsius rounded to two decimals. Values
// below absolute zero are not rejected.
func KelvinToCelsius(k float64) float64 {
	return round2(k - absoluteZeroC)
}

// round2 rounds to two decimals using the correctly rounded decimal
// representation, so exact binary ties go to even.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}

// LocalTime shifts a Unix timestamp by offset seconds and returns the
// resulting wall-clock time as a zone-less (UTC-located) value.
func LocalTime(epoch, offset int64) time.Time {
	return time.Unix(epoch+offset, 0).UTC()
}

// Normalize converts a raw observation into a NormalizedRecord. A missing
// source field fails with ErrTransform naming the field.
func Normalize(raw RawObservation) (NormalizedRecord, error) {
	if err := checkPresence(raw); err != nil {
		return NormalizedRecord{}, err
	}

	tz := *raw.Timezone
	return NormalizedRecord{
		City:         *raw.Name,
		Description:  *raw.Weather[0].Description,
		TemperatureC: KelvinToCelsius(*raw.Main.Temp),
		FeelsLikeC:   KelvinToCelsius(*raw.Main.FeelsLike),
		MinTempC:     KelvinToCelsius(*raw.Main.TempMin),
		MaxTempC:     KelvinToCelsius(*raw.Main.TempMax),
		Pressure:     raw.Main.Pressure,
		Humidity:     raw.Main.Humidity,
		WindSpeed:    raw.Wind.Speed,
		TimeOfRecord: LocalTime(*raw.Dt, tz),
		Sunrise:      LocalTime(*raw.Sys.Sunrise, tz),
		Sunset:       LocalTime(*raw.Sys.Sunset, tz),
	}, nil
}

// checkPresence validates that every field Normalize reads is present.
// Only the first weather entry is inspected.
func checkPresence(raw RawObservation) error {
	if err := validate.Struct(raw); err != nil {
		return presenceError(err, "")
	}
	if err := validate.Struct(raw.Weather[0]); err != nil {
		return presenceError(err, "weather[0].")
	}
	return nil
}

func presenceError(err error, prefix string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrTransform, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, prefix+fieldPath(fe.Namespace()))
	}
	return fmt.Errorf("%w: missing field %s", ErrTransform, strings.Join(fields, ", "))
}

// fieldPath drops the leading struct type name from a validator namespace:
// "RawObservation.main.temp" -> "main.temp".
func fieldPath(ns string) string {
	_, path, found := strings.Cut(ns, ".")
	if !found {
		return ns
	}
	return path
}

// ObjectKey builds the storage key for a record created at now:
// prefix + DDMMYYYYHHMMSS + ".csv".
func ObjectKey(prefix string, now time.Time) string {
	return prefix + now.Format(objectKeyLayout) + ObjectKeyExt
}

// EncodeCSV serializes the record as a header row plus one data row, without
// an index column.
func EncodeCSV(rec NormalizedRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.Write(rec.Row()); err != nil {
		return nil, fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// formatFloat renders v the way the downstream CSV consumers expect:
// shortest round-trip digits, always with a decimal point ("3.0", "26.85").
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func formatLocalTime(t time.Time) string {
	return t.Format(localTimeLayout)
}
