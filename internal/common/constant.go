package common

// DateLayout is the calendar date format used by the statement API and by the
// date columns of the sink tables.
const DateLayout = "2006-01-02"

// Outbound header names.
const (
	AuthorizationHeaderName = "Authorization"
	BearerPrefix            = "Bearer "
)
