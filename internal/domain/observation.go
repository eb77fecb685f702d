package domain

import (
	"encoding/json"
	"time"
)

// RawObservation is the subset of the OpenWeatherMap current-weather response
// the pipeline reads. Pointer fields distinguish "absent" from zero values
// (a UTC city legitimately reports timezone 0).
type RawObservation struct {
	Name     *string            `json:"name" validate:"required"`
	Weather  []WeatherCondition `json:"weather" validate:"required,min=1"`
	Main     *MainBlock         `json:"main" validate:"required"`
	Wind     *WindBlock         `json:"wind" validate:"required"`
	Dt       *int64             `json:"dt" validate:"required"`
	Timezone *int64             `json:"timezone" validate:"required"`
	Sys      *SysBlock          `json:"sys" validate:"required"`
}

// WeatherCondition is one entry of the "weather" array.
type WeatherCondition struct {
	Description *string `json:"description" validate:"required"`
}

// MainBlock holds temperatures in Kelvin plus pressure and humidity.
// Pressure and humidity keep the number text the API sent.
type MainBlock struct {
	Temp      *float64    `json:"temp" validate:"required"`
	FeelsLike *float64    `json:"feels_like" validate:"required"`
	TempMin   *float64    `json:"temp_min" validate:"required"`
	TempMax   *float64    `json:"temp_max" validate:"required"`
	Pressure  json.Number `json:"pressure" validate:"required"`
	Humidity  json.Number `json:"humidity" validate:"required"`
}

// WindBlock holds wind speed in m/s.
type WindBlock struct {
	Speed json.Number `json:"speed" validate:"required"`
}

// SysBlock holds sunrise and sunset as Unix seconds.
type SysBlock struct {
	Sunrise *int64 `json:"sunrise" validate:"required"`
	Sunset  *int64 `json:"sunset" validate:"required"`
}

// NormalizedRecord is the flat, unit-converted form of one RawObservation.
// Temperatures are Celsius rounded to two decimals; datetimes are local
// wall-clock times without zone information.
type NormalizedRecord struct {
	City         string
	Description  string
	TemperatureC float64
	FeelsLikeC   float64
	MinTempC     float64
	MaxTempC     float64
	Pressure     json.Number
	Humidity     json.Number
	WindSpeed    json.Number
	TimeOfRecord time.Time
	Sunrise      time.Time
	Sunset       time.Time
}

// Columns is the header row of the output CSV, in output order.
// "Minimun" is part of the published column contract.
var Columns = []string{
	"City",
	"Description",
	"Temperature (C)",
	"Feels Like (C)",
	"Minimun Temp (C)",
	"Maximum Temp (C)",
	"Pressure",
	"Humidity",
	"Wind Speed",
	"Time of Record",
	"Sunrise (Local Time)",
	"Sunset (Local Time)",
}

// Row renders the record as CSV cells in Columns order.
func (r NormalizedRecord) Row() []string {
	return []string{
		r.City,
		r.Description,
		formatFloat(r.TemperatureC),
		formatFloat(r.FeelsLikeC),
		formatFloat(r.MinTempC),
		formatFloat(r.MaxTempC),
		r.Pressure.String(),
		r.Humidity.String(),
		r.WindSpeed.String(),
		formatLocalTime(r.TimeOfRecord),
		formatLocalTime(r.Sunrise),
		formatLocalTime(r.Sunset),
	}
}

// Fields returns the record keyed by column name.
func (r NormalizedRecord) Fields() map[string]string {
	row := r.Row()
	fields := make(map[string]string, len(Columns))
	for i, col := range Columns {
		fields[col] = row[i]
	}
	return fields
}
