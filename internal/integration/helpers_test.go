package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const (
	testSecretID = "weather_api_etl_project"
	testBucket   = "weatherapiairflowprojectmz"
	testPrefix   = "current_weather_data_prague_"
	testAPIKey   = "owm-key"

	secretJSON = `{"weather_api_key":"owm-key","access_key_id":"AKIA123","secret_access_key":"shh"}`

	pragueJSON = `{"name":"Prague","weather":[{"description":"clear sky"}],"main":{"temp":300.0,"feels_like":298.0,"temp_min":295.0,"temp_max":302.0,"pressure":1012,"humidity":40},"wind":{"speed":3.5},"dt":1700000000,"timezone":3600,"sys":{"sunrise":1699970000,"sunset":1700010000}}`

	pragueCSV = "City,Description,Temperature (C),Feels Like (C),Minimun Temp (C),Maximum Temp (C),Pressure,Humidity,Wind Speed,Time of Record,Sunrise (Local Time),Sunset (Local Time)\n" +
		"Prague,clear sky,26.85,24.85,21.85,28.85,1012,40,3.5,2023-11-14 23:13:20,2023-11-14 14:53:20,2023-11-15 02:00:00\n"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSecretsManager serves a single secret string.
type fakeSecretsManager struct {
	secret string
	calls  atomic.Int64
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls.Add(1)
	return &secretsmanager.GetSecretValueOutput{
		Name:         in.SecretId,
		SecretString: aws.String(f.secret),
	}, nil
}

type storedObject struct {
	bucket string
	key    string
	body   []byte
}

// fakeS3 records every PutObject call.
type fakeS3 struct {
	mu      sync.Mutex
	objects []storedObject
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects = append(f.objects, storedObject{bucket: aws.ToString(in.Bucket), key: aws.ToString(in.Key), body: body})
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) stored() []storedObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storedObject(nil), f.objects...)
}

// weatherServer answers the current-weather endpoint with status and body,
// counting hits.
func weatherServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/data/2.5/weather" || r.URL.Query().Get("APPID") != testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}
