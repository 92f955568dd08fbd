// Package validator provides small declarative validation rules.
//
// Every rule is a Rule value pairing a Check function with the field error it
// reports. Apply evaluates a list of rules and returns ValidationErrors, an
// error listing each failing field, or nil:
//
//	err := validator.Apply(
//	    validator.RequiredString("organizationId", orgID),
//	    validator.RequiredSlice("userIds", userIDs),
//	    validator.Positive("durationMinutes", duration),
//	)
//
// Engines join the result with their own sentinel (for example
// queue.ErrInvalidArgument) so callers can match with errors.Is and still read
// the field hints through ExtractValidationErrors.
package validator
