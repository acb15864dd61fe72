package core

// error_messages.go maps technical errors to messages an administrator or
// visitor can act on. Every message carries a code they can quote back.
//
// # Database (DB001-DB099)
//
//	DB001 - Duplicate row             "duplicate key"
//	DB002 - Unique constraint         "unique constraint", "violates unique"
//	DB003 - Missing parent row        "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused        "connection refused"
//	DB005 - Connection reset          "connection reset"
//	DB006 - Timeout                   "timeout"
//	DB007 - Deadlock                  "deadlock"
//	DB008 - Row not found             "row not found"
//
// # Validation (VAL001-VAL099)
//
//	VAL001 - Footprint count does not match fit type   "fit requires", "fit takes no"
//	VAL002 - Invalid fit type                          "invalid fit_type"
//	VAL003 - Invalid mount type                        "invalid mount_type"
//	VAL004 - Mount type and links disagree             "direct_mount optic", "standard optic"
//	VAL005 - Missing CSV column                        "missing required column"
//	VAL006 - Unknown reference                         "does not exist"
//	VAL007 - Field validation                          "validation failed"
//
// # Files (FILE001-FILE099)
//
//	FILE001 - File too large        "file too large"
//	FILE002 - Invalid CSV           "invalid csv"
//	FILE003 - Encoding problem      "encoding error"
//	FILE004 - No file               "no file provided"
//	FILE005 - Empty file            "empty file"
//
// # Import and resolution (IMP001-IMP099)
//
//	IMP001 - Import slots busy          "too many imports"
//	IMP002 - Unknown table              "unknown table"
//	IMP003 - Table is read-only         "not writable"
//	IMP004 - Request cancelled          "context canceled"
//	IMP005 - Request timed out          "context deadline exceeded"
//	IMP006 - Superseded resolution      "superseded"
//
// # Images (IMG001-IMG099)
//
//	IMG001 - Unsupported image type     "unsupported image"
//	IMG002 - Image too large            "image too large"
//
// # Authentication (AUTH001-AUTH099)
//
//	AUTH001 - Wrong password            "invalid credentials"
//	AUTH002 - Not signed in             "unauthorized"
//
// # Rate limiting (RATE001)
//
//	RATE001 - Too many requests         "rate limit", "too many login attempts"
//
// ERR000 is the fallback. Support should check the logs for the technical
// error behind it.
//
// Patterns match case-insensitively with strings.Contains and the first
// match wins, so specific patterns are listed before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Validation first: their messages may quote arbitrary user input.
	{
		pattern: "fit requires",
		msg: UserMessage{
			Message: "The number of footprints does not match the fit type",
			Action:  "Single takes exactly one, multi at least two, mixed at least one",
			Code:    "VAL001",
		},
	},
	{
		pattern: "fit takes no",
		msg: UserMessage{
			Message: "Plate-based models cannot have direct footprints",
			Action:  "Remove the footprints or change the fit type",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid fit_type",
		msg: UserMessage{
			Message: "Unknown fit type",
			Action:  "Use single, multi, plate_based or mixed",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid mount_type",
		msg: UserMessage{
			Message: "Unknown mount type",
			Action:  "Use standard or direct_mount",
			Code:    "VAL003",
		},
	},
	{
		pattern: "direct_mount optic",
		msg: UserMessage{
			Message: "Direct-mount optics are linked to models, not footprints",
			Action:  "Clear the footprint or change the mount type",
			Code:    "VAL004",
		},
	},
	{
		pattern: "standard optic",
		msg: UserMessage{
			Message: "Footprint-mounted optics need a footprint",
			Action:  "Select a footprint or change the mount type",
			Code:    "VAL004",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from the CSV",
			Action:  "Download the template and compare the header row",
			Code:    "VAL005",
		},
	},
	{
		pattern: "does not exist",
		msg: UserMessage{
			Message: "A referenced record does not exist",
			Action:  "Refresh the page and pick the record again",
			Code:    "VAL006",
		},
	},
	{
		pattern: "validation failed",
		msg: UserMessage{
			Message: "Some fields are invalid",
			Action:  "Correct the highlighted fields and submit again",
			Code:    "VAL007",
		},
	},

	// Database
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this name already exists",
			Action:  "Edit the existing record instead",
			Code:    "DB001",
		},
	},
	{
		pattern: "record already exists",
		msg: UserMessage{
			Message: "This link already exists",
			Action:  "No change is needed",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Check for duplicate entries",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Create the parent record first",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Create the parent record first",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "row not found",
		msg: UserMessage{
			Message: "Record not found",
			Action:  "It may have been deleted. Refresh the page",
			Code:    "DB008",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a CSV with a header row and data rows",
			Code:    "FILE005",
		},
	},

	// Import and resolution
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "Another import is still running",
			Action:  "Wait for it to finish and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "Unknown table",
			Action:  "Pick one of the listed tables",
			Code:    "IMP002",
		},
	},
	{
		pattern: "not writable",
		msg: UserMessage{
			Message: "This table cannot be edited directly",
			Action:  "Use the model or optic form instead",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "IMP005",
		},
	},
	{
		pattern: "superseded",
		msg: UserMessage{
			Message: "A newer search replaced this one",
			Action:  "No action needed",
			Code:    "IMP006",
		},
	},

	// Images
	{
		pattern: "unsupported image",
		msg: UserMessage{
			Message: "Unsupported image type",
			Action:  "Upload a JPEG, PNG, WebP or GIF",
			Code:    "IMG001",
		},
	},
	{
		pattern: "image too large",
		msg: UserMessage{
			Message: "Image exceeds 2 MB",
			Action:  "Resize or compress the image",
			Code:    "IMG002",
		},
	},

	// Authentication
	{
		pattern: "invalid credentials",
		msg: UserMessage{
			Message: "Incorrect password",
			Action:  "Check the password and try again",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "unauthorized",
		msg: UserMessage{
			Message: "You are not signed in",
			Action:  "Sign in to the admin dashboard",
			Code:    "AUTH002",
		},
	},

	// Rate limiting
	{
		pattern: "too many login attempts",
		msg: UserMessage{
			Message: "Too many sign-in attempts",
			Action:  "Wait 15 minutes before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. The first
// matching pattern wins; ERR000 is returned when none match.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its mapped message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
