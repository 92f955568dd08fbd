// Package logger builds the *slog.Logger used across schedkit.
//
// New creates a logger from functional options: output format (json, text or a
// colorized pretty format backed by github.com/lmittmann/tint), minimum level,
// static attributes and ContextExtractor callbacks that pull request-scoped
// values such as the organization id out of context.Context on every record.
//
// Attribute helpers (OrganizationID, JobID, SuggestionID, Error, ...) keep key
// names consistent between the queue, availability and scheduling engines.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "schedkit"),
//	    logger.WithContextExtractors(logger.OrganizationExtractor),
//	)
//	ctx := logger.WithOrganization(context.Background(), "org-1")
//	log.InfoContext(ctx, "suggestion ready", logger.SuggestionID(id))
//
// Error and Errors return an empty attribute for nil errors, so
//
//	log.Info("operation finished", logger.Error(err))
//
// needs no extra nil check.
package logger
