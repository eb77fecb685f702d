// Package domain models the OpenWeatherMap current-weather payload and the
// normalized record this service writes to object storage.
//
// # Data Source
//
// Observations come from the OpenWeatherMap "current weather" endpoint:
//
//	GET <host>/data/2.5/weather?q=<city>&APPID=<key>
//
// The response is a nested JSON object. Only these fields are read:
//
//	name                     city name
//	weather[0].description   free-text description, e.g. "clear sky"
//	main.temp                current temperature (Kelvin)
//	main.feels_like          perceived temperature (Kelvin)
//	main.temp_min            minimum temperature (Kelvin)
//	main.temp_max            maximum temperature (Kelvin)
//	main.pressure            pressure (hPa)
//	main.humidity            humidity (%)
//	wind.speed               wind speed (m/s)
//	dt                       observation time, Unix seconds UTC
//	timezone                 shift from UTC in seconds for the city
//	sys.sunrise, sys.sunset  Unix seconds UTC
//
// # Normalization
//
// Temperatures are converted to Celsius and rounded to two decimals. Pressure,
// humidity, and wind speed pass through untouched, keeping the exact number
// text the API sent. The three epoch fields are shifted by the timezone offset
// and rendered as naive local datetimes; the offset itself is not kept.
//
// # Output
//
// One run produces one CSV object: a header row with the column names in
// [Columns] and a single data row. Keys embed the wall-clock creation time,
// see [ObjectKey].
package domain
