package pipeline

import (
	"fmt"
	"time"

	"github.com/couchcryptid/weather-s3-etl/internal/domain"
)

// Object is a serialized record ready for the store.
type Object struct {
	Key    string
	Record domain.NormalizedRecord
	Body   []byte
}

// BuildObject normalizes raw and renders it as a keyed CSV object created at now.
func BuildObject(raw domain.RawObservation, keyPrefix string, now time.Time) (Object, error) {
	rec, err := domain.Normalize(raw)
	if err != nil {
		return Object{}, err
	}

	body, err := domain.EncodeCSV(rec)
	if err != nil {
		return Object{}, fmt.Errorf("%w: %w", domain.ErrTransform, err)
	}

	return Object{
		Key:    domain.ObjectKey(keyPrefix, now),
		Record: rec,
		Body:   body,
	}, nil
}
