package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/couchcryptid/weather-s3-etl/internal/domain"
)

// GetSecretValueAPI is the slice of the Secrets Manager client the provider uses.
type GetSecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Provider resolves secret bundles from AWS Secrets Manager.
// It implements pipeline.CredentialProvider.
type Provider struct {
	client GetSecretValueAPI
	logger *slog.Logger
}

// NewProvider creates a Provider backed by a Secrets Manager client built from cfg.
func NewProvider(cfg aws.Config, logger *slog.Logger) *Provider {
	return NewProviderWithClient(secretsmanager.NewFromConfig(cfg), logger)
}

// NewProviderWithClient creates a Provider around an existing client.
func NewProviderWithClient(client GetSecretValueAPI, logger *slog.Logger) *Provider {
	return &Provider{client: client, logger: logger}
}

// Resolve fetches secretID and parses its string value as a flat JSON object.
// Every failure wraps domain.ErrSecretUnavailable; nothing is retried.
func (p *Provider) Resolve(ctx context.Context, secretID string) (domain.SecretBundle, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrSecretUnavailable, secretID, err)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" {
		return nil, fmt.Errorf("%w: %s has no string value", domain.ErrSecretUnavailable, secretID)
	}

	bundle, err := parseBundle(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrSecretUnavailable, secretID, err)
	}

	p.logger.Debug("secret resolved", "secret_id", secretID, "fields", len(bundle))
	return bundle, nil
}

// parseBundle decodes a JSON object whose values are all strings.
func parseBundle(raw string) (domain.SecretBundle, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("secret is not a JSON object")
	}

	bundle := make(domain.SecretBundle, len(fields))
	for name, value := range fields {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, fmt.Errorf("field %q is not a string", name)
		}
		bundle[name] = s
	}
	return bundle, nil
}
