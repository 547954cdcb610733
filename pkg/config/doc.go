// Package config provides the configuration surface for lakeflow.
//
// Settings are read once, at process start, from the environment (and an
// optional .env file loaded by the CLI). The result is a plain Config value
// that is handed to every gateway constructor; nothing below the CLI reads the
// environment on its own.
//
// # Sections
//
//   - Source: base URL, request timeout and rate limit of the HTTP source
//   - Postgres: connection settings for the staging and analytics schemas
//   - ObjectStore: MinIO/S3 endpoint, credentials and zone buckets
//   - Logging: level and encoding
//   - Observability: Pushgateway URL and tracing switch
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//		// err is a config error naming every missing variable
//		return err
//	}
//	gw, err := postgres.Connect(ctx, cfg.Postgres, log)
//
// YAML documents such as the export catalog are read with LoadFile, which
// substitutes ${VAR_NAME} references from the environment before parsing.
package config
