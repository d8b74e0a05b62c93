package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/plugvfs/plugvfs/pkg/vfs"
	"github.com/plugvfs/plugvfs/pkg/vfs/badgerfs"
	"github.com/plugvfs/plugvfs/pkg/vfs/memfs"
	"github.com/plugvfs/plugvfs/pkg/vfs/s3fs"
)

// CreateBackend creates a storage backend based on configuration.
//
// This factory function uses the Type field to determine which backend
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the backend's constructor.
//
// Supported types:
//   - "memory": Uses pkg/vfs/memfs (in-memory storage)
//   - "badger": Uses pkg/vfs/badgerfs (BadgerDB page storage)
//   - "s3": Uses pkg/vfs/s3fs (Amazon S3 or compatible storage)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Backend configuration
//
// Returns:
//   - vfs.Backend: Initialized storage backend
//   - error: Configuration or initialization error
func CreateBackend(ctx context.Context, cfg *BackendConfig) (vfs.Backend, error) {
	switch cfg.Type {
	case "memory":
		return memfs.New(), nil
	case "badger":
		return createBadgerBackend(cfg.Badger)
	case "s3":
		return createS3Backend(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Type)
	}
}

// createBadgerBackend creates a BadgerDB-backed storage backend.
func createBadgerBackend(options map[string]any) (vfs.Backend, error) {
	type BadgerBackendConfig struct {
		DBPath     string `mapstructure:"db_path"`
		InMemory   bool   `mapstructure:"in_memory"`
		PageSize   int    `mapstructure:"page_size"`
		SyncWrites bool   `mapstructure:"sync_writes"`
	}

	var backendCfg BadgerBackendConfig
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger backend config: %w", err)
	}

	if backendCfg.DBPath == "" && !backendCfg.InMemory {
		return nil, fmt.Errorf("badger backend: db_path is required unless in_memory is set")
	}

	backend, err := badgerfs.New(badgerfs.Config{
		DBPath:     backendCfg.DBPath,
		InMemory:   backendCfg.InMemory,
		PageSize:   backendCfg.PageSize,
		SyncWrites: backendCfg.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger backend: %w", err)
	}

	return backend, nil
}

// createS3Backend creates an S3-backed storage backend.
func createS3Backend(ctx context.Context, options map[string]any) (vfs.Backend, error) {
	type S3BackendConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
		UsePathStyle    bool   `mapstructure:"use_path_style"`
	}

	var backendCfg S3BackendConfig
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, fmt.Errorf("failed to decode s3 backend config: %w", err)
	}

	if backendCfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend: bucket is required")
	}
	if backendCfg.Region == "" {
		return nil, fmt.Errorf("s3 backend: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(backendCfg.Region))

	// Custom endpoint for MinIO, Localstack, and other compatible stores
	if backendCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               backendCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain
	if backendCfg.AccessKeyID != "" && backendCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			backendCfg.AccessKeyID,
			backendCfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Database page traffic amplifies transient S3 failures, so retry
	// more aggressively than the AWS default of 3.
	maxRetries := backendCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = backendCfg.UsePathStyle
	})

	backend, err := s3fs.New(ctx, client, backendCfg.Bucket, backendCfg.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 backend: %w", err)
	}

	return backend, nil
}
