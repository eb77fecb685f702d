// Command render reads a raw current-weather JSON document and prints the
// object key and CSV body the pipeline would write for it. It uses the real
// domain transform, so the output matches what lands in the bucket.
//
// Usage:
//
//	go run ./cmd/render -in testdata/prague.json -at 2023-11-14T23:13:20Z
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/couchcryptid/weather-s3-etl/internal/domain"
	"github.com/couchcryptid/weather-s3-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "path to a raw weather API JSON response")
	at := flag.String("at", "", "RFC3339 run time used for the object key (default: now)")
	prefix := flag.String("prefix", "current_weather_data_prague_", "object key prefix")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -in")
	}

	// Fix the clock for reproducible keys.
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(t))
		defer domain.SetClock(nil)
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	var raw domain.RawObservation
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}

	obj, err := pipeline.BuildObject(raw, *prefix, domain.Now())
	if err != nil {
		return err
	}

	fmt.Println(obj.Key)
	fmt.Print(string(obj.Body))
	return nil
}
