package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/weather-s3-etl/internal/domain"
	"github.com/couchcryptid/weather-s3-etl/internal/observability"
	"github.com/google/uuid"
)

// Step names. The last three are the ordered, scheduler-visible steps; secret
// resolution runs before them as part of opening a run.
const (
	StepResolveSecrets           = "resolve_secrets"
	StepIsWeatherAPIReady        = "is_weather_api_ready"
	StepExtractWeatherData       = "extract_weather_data"
	StepTransformLoadWeatherData = "transform_load_weather_data"
)

// Steps lists the scheduler-visible steps in execution order.
var Steps = []string{
	StepIsWeatherAPIReady,
	StepExtractWeatherData,
	StepTransformLoadWeatherData,
}

// observerTimeout bounds report delivery to each observer.
const observerTimeout = 10 * time.Second

// CredentialProvider resolves a named secret bundle.
type CredentialProvider interface {
	Resolve(ctx context.Context, secretID string) (domain.SecretBundle, error)
}

// WeatherAPI checks and fetches the current observation for the configured city.
type WeatherAPI interface {
	CheckAvailability(ctx context.Context, apiKey string) error
	Fetch(ctx context.Context, apiKey string) (domain.RawObservation, error)
}

// ObjectStore writes one object under key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, creds domain.StorageCredentials) error
}

// RunObserver receives the report of every finished run.
type RunObserver interface {
	Name() string
	ObserveRun(ctx context.Context, report domain.RunReport) error
}

// Settings are the injected, per-deployment values of the pipeline.
type Settings struct {
	SecretID  string
	City      string
	Bucket    string
	KeyPrefix string
}

// RunContext carries everything scoped to one run. It is created when the run
// starts and dropped when it ends.
type RunContext struct {
	ID           string
	StartedAt    time.Time
	APIKey       string
	StorageCreds domain.StorageCredentials
}

// StepError records which step failed and the state the run was in.
type StepError struct {
	Step  string
	State domain.RunState
	Err   error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline runs check -> extract -> transform -> load, once per call to Run.
type Pipeline struct {
	secrets   CredentialProvider
	weather   WeatherAPI
	store     ObjectStore
	observers []RunObserver
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu   sync.Mutex
	last *domain.RunReport
}

// New creates a Pipeline with the given collaborators and observability.
func New(secrets CredentialProvider, weather WeatherAPI, store ObjectStore, settings Settings, logger *slog.Logger, metrics *observability.Metrics, observers ...RunObserver) *Pipeline {
	return &Pipeline{
		secrets:   secrets,
		weather:   weather,
		store:     store,
		observers: observers,
		settings:  settings,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes one complete run and returns its report. The returned error
// is the run's failure, if any; it is also recorded in the report.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		City:      p.settings.City,
		Bucket:    p.settings.Bucket,
		StartedAt: domain.Now(),
	}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("run started", "city", p.settings.City)

	p.metrics.RunInProgress.Inc()
	defer p.metrics.RunInProgress.Dec()

	err := p.execute(ctx, &report)
	report.FinishedAt = domain.Now()

	if err != nil {
		report.State = domain.StateFailed
		report.ErrorKind = domain.ErrorKind(err)
		report.Error = err.Error()
		var se *StepError
		if errors.As(err, &se) {
			report.FailedStep = se.Step
		}
		logger.Error("run failed", "step", report.FailedStep, "error_kind", report.ErrorKind, "error", err)
	} else {
		logger.Info("run finished", "key", report.ObjectKey, "duration", report.Duration())
	}

	p.record(report)
	p.notify(ctx, report, logger)
	return report, err
}

// execute walks the state machine. report.State holds the current state
// until the run ends.
func (p *Pipeline) execute(ctx context.Context, report *domain.RunReport) error {
	rc, err := p.openRun(ctx, report.RunID, report.StartedAt)
	if err != nil {
		return err
	}

	report.State = domain.StateCheckingAvailability
	if err := p.IsWeatherAPIReady(ctx, rc); err != nil {
		return err
	}

	report.State = domain.StateExtracting
	raw, err := p.ExtractWeatherData(ctx, rc)
	if err != nil {
		return err
	}

	report.State = domain.StateTransforming
	key, err := p.TransformLoadWeatherData(ctx, rc, raw)
	if err != nil {
		return err
	}

	report.State = domain.StateLoaded
	report.ObjectKey = key
	return nil
}

// NewRun opens a run: it assigns an ID and resolves the secret bundle. Any
// missing credential fails here, before a network call to the weather API.
func (p *Pipeline) NewRun(ctx context.Context) (*RunContext, error) {
	return p.openRun(ctx, uuid.NewString(), domain.Now())
}

func (p *Pipeline) openRun(ctx context.Context, id string, startedAt time.Time) (*RunContext, error) {
	fail := func(err error) error {
		return &StepError{Step: StepResolveSecrets, State: domain.StateCheckingAvailability, Err: err}
	}

	bundle, err := p.secrets.Resolve(ctx, p.settings.SecretID)
	if err != nil {
		return nil, fail(err)
	}
	apiKey, err := bundle.WeatherAPIKey()
	if err != nil {
		return nil, fail(err)
	}
	creds, err := bundle.StorageCredentials()
	if err != nil {
		return nil, fail(err)
	}

	return &RunContext{
		ID:           id,
		StartedAt:    startedAt,
		APIKey:       apiKey,
		StorageCreds: creds,
	}, nil
}

// IsWeatherAPIReady gates extraction on a successful availability check.
func (p *Pipeline) IsWeatherAPIReady(ctx context.Context, rc *RunContext) error {
	if err := p.weather.CheckAvailability(ctx, rc.APIKey); err != nil {
		return &StepError{Step: StepIsWeatherAPIReady, State: domain.StateCheckingAvailability, Err: err}
	}
	return nil
}

// ExtractWeatherData fetches the raw observation.
func (p *Pipeline) ExtractWeatherData(ctx context.Context, rc *RunContext) (domain.RawObservation, error) {
	raw, err := p.weather.Fetch(ctx, rc.APIKey)
	if err != nil {
		return domain.RawObservation{}, &StepError{Step: StepExtractWeatherData, State: domain.StateExtracting, Err: err}
	}
	return raw, nil
}

// TransformLoadWeatherData normalizes raw, writes it, and returns the object
// key. Nothing is written when the transform fails.
func (p *Pipeline) TransformLoadWeatherData(ctx context.Context, rc *RunContext, raw domain.RawObservation) (string, error) {
	fail := func(err error) (string, error) {
		return "", &StepError{Step: StepTransformLoadWeatherData, State: domain.StateTransforming, Err: err}
	}

	obj, err := BuildObject(raw, p.settings.KeyPrefix, domain.Now())
	if err != nil {
		return fail(err)
	}
	if err := p.store.Put(ctx, obj.Key, obj.Body, rc.StorageCreds); err != nil {
		return fail(err)
	}
	return obj.Key, nil
}

// CheckReadiness reports an error when the most recent run failed. Before the
// first run the service is considered ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	last, ok := p.LastReport()
	if !ok || last.Succeeded() {
		return nil
	}
	return fmt.Errorf("last run %s failed at %s: %s", last.RunID, last.FailedStep, last.ErrorKind)
}

// LastReport returns the report of the most recent run, if any.
func (p *Pipeline) LastReport() (domain.RunReport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return domain.RunReport{}, false
	}
	return *p.last, true
}

func (p *Pipeline) record(report domain.RunReport) {
	p.mu.Lock()
	p.last = &report
	p.mu.Unlock()

	p.metrics.RunDuration.Observe(report.Duration().Seconds())
	if report.Succeeded() {
		p.metrics.RunsTotal.WithLabelValues("success").Inc()
		p.metrics.ObjectsWritten.Inc()
		p.metrics.LastSuccess.Set(float64(report.FinishedAt.Unix()))
		return
	}
	p.metrics.RunsTotal.WithLabelValues("failure").Inc()
	p.metrics.StepFailures.WithLabelValues(report.FailedStep).Inc()
}

// notify delivers the report to every observer. Observer failures are logged
// and never change the run outcome.
func (p *Pipeline) notify(ctx context.Context, report domain.RunReport, logger *slog.Logger) {
	for _, o := range p.observers {
		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), observerTimeout)
		err := o.ObserveRun(octx, report)
		cancel()
		if err != nil {
			p.metrics.ObserverFailures.WithLabelValues(o.Name()).Inc()
			logger.Warn("run observer failed", "observer", o.Name(), "error", err)
		}
	}
}
