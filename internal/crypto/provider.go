package crypto

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// MasterKeyProvider supplies the current master key. The backend may rotate
// the key over time; the Engine re-derives user keys whenever the returned
// material changes.
type MasterKeyProvider interface {
	MasterKey(ctx context.Context) ([]byte, error)
}

// StaticProvider serves a fixed key from configuration. Intended for
// development and tests.
type StaticProvider struct {
	key []byte
}

func NewStaticProvider(key string) (*StaticProvider, error) {
	if key == "" {
		return nil, errors.New("master key is empty")
	}
	return &StaticProvider{key: []byte(key)}, nil
}

func (p *StaticProvider) MasterKey(ctx context.Context) ([]byte, error) {
	return p.key, nil
}

// SecretsManagerProvider fetches the master key from AWS Secrets Manager on
// every call, so a rotated secret takes effect without a restart.
type SecretsManagerProvider struct {
	client   *secretsmanager.Client
	secretID string
}

func NewSecretsManagerProvider(ctx context.Context, region, secretID string) (*SecretsManagerProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SecretsManagerProvider{
		client:   secretsmanager.NewFromConfig(cfg),
		secretID: secretID,
	}, nil
}

func (p *SecretsManagerProvider) MasterKey(ctx context.Context) ([]byte, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching secret %s: %w", p.secretID, err)
	}
	if out.SecretString != nil {
		return []byte(*out.SecretString), nil
	}
	if len(out.SecretBinary) > 0 {
		return out.SecretBinary, nil
	}
	return nil, fmt.Errorf("secret %s has no value", p.secretID)
}
