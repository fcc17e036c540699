package menu

// errors.go defines the error surface of the pipeline.
//
// Three kinds of failure leave this package:
//   - input validation errors, raised before any write (ValidationError,
//     RowErrors) so a rejected request never leaves a partial write behind
//   - stage errors from the publish sequence (StageError), naming the step
//     that failed so callers know where to resume — re-invoking the whole
//     publish is the recovery path, every step being idempotent
//   - storage errors, wrapped with their operation and surfaced as-is
//
// MapError translates any of them to a user-facing message with a stable
// code that can be quoted to support staff.

import (
	"fmt"
	"strings"
)

// Publish stage names, reported in StageError and receipts.
const (
	StageLoadDraft     = "load_draft"
	StageCategories    = "upsert_categories"
	StageItems         = "upsert_items"
	StageItemMap       = "map_items"
	StageLinkBackfill  = "backfill_links"
	StagePromoteAddons = "promote_addons"
)

// StageError reports which publish step failed and why. There is no
// compensating rollback; callers re-invoke the publish in full.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("publish stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ValidationError rejects malformed input before any write happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid draft: %s: %s", e.Field, e.Message)
	}
	return "invalid draft: " + e.Message
}

// RowError is one failed row in a bulk request.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// RowErrors aborts a bulk request, listing every failing row with its index
// and reason. Import mode is all-or-nothing, so a single RowError blocks the
// entire submission.
type RowErrors struct {
	Errors []RowError `json:"rowErrors"`
}

func (e *RowErrors) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("row %d: %s", e.Errors[0].Row, e.Errors[0].Message)
	}
	return fmt.Sprintf("%d rows failed validation (first: row %d: %s)",
		len(e.Errors), e.Errors[0].Row, e.Errors[0].Message)
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. Matching uses strings.Contains and the first match wins, so
// specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "nothing to publish",
		msg: UserMessage{
			Message: "There is no draft to publish",
			Action:  "Save the menu editor at least once before publishing",
			Code:    "PUB001",
		},
	},
	{
		pattern: "publish stage",
		msg: UserMessage{
			Message: "Publishing stopped partway through",
			Action:  "Publish again; completed steps are safe to repeat",
			Code:    "PUB002",
		},
	},
	{
		pattern: "invalid draft",
		msg: UserMessage{
			Message: "The menu draft could not be saved",
			Action:  "Fix the highlighted fields and save again",
			Code:    "VAL001",
		},
	},
	{
		pattern: "rows failed validation",
		msg: UserMessage{
			Message: "Some uploaded rows are invalid",
			Action:  "Fix the listed rows and upload again",
			Code:    "VAL002",
		},
	},
	{
		pattern: "confirmation required",
		msg: UserMessage{
			Message: "This change needs explicit confirmation",
			Action:  "Review the preview, then resubmit with confirm set",
			Code:    "VAL003",
		},
	},
	{
		pattern: "draft not found",
		msg: UserMessage{
			Message: "No menu draft exists yet",
			Action:  "Open the menu editor to create one",
			Code:    "NF001",
		},
	},
	{
		pattern: "item not found",
		msg: UserMessage{
			Message: "That menu item does not exist",
			Action:  "Reload the menu and try again",
			Code:    "NF002",
		},
	},
	{
		pattern: "group not found",
		msg: UserMessage{
			Message: "That add-on group does not exist",
			Action:  "Reload the add-on editor and try again",
			Code:    "NF003",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this identity already exists",
			Action:  "Check for duplicate entries",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries",
			Code:    "DB001",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "A referenced record does not exist",
			Action:  "Publish categories and items before add-ons",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Try again, or upload a smaller file",
			Code:    "DB004",
		},
	},
	{
		pattern: "concurrent bulk",
		msg: UserMessage{
			Message: "Too many bulk operations are running",
			Action:  "Wait for the current operation to finish, then retry",
			Code:    "RATE002",
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

// defaultMessage is returned when no pattern matches. Support staff should
// check application logs for the original error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
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
