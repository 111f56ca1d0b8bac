// Package observability configures the process-wide zap logger.
package observability
