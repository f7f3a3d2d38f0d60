// Package core runs the document pipeline.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When a document fails, the caller can quote the code to support staff for
// faster diagnosis.
//
// Error codes are grouped by category:
//
// # Pipeline Errors (CLS, EXT, MAP, VAL)
//
// Errors raised by a pipeline stage for one document:
//
//	CLS001 - Classification: Document type could not be determined
//	         Action: Check that the text contains invoice or purchase order wording
//	         Patterns: "failed to classify document type"
//
//	EXT001 - Extraction missing: No extraction data is available for the document
//	         Action: Run the document through the extraction service and resend
//	         Patterns: "failed to extract data"
//
//	EXT002 - Extraction payload: Extraction data is not in the expected format
//	         Action: Send the extraction service output unchanged
//	         Patterns: "parse raw extraction", "fields: expected"
//
//	MAP001 - Mapping: Extracted data could not be mapped to the canonical model
//	         Action: Check the mapping configuration for this document type and vendor
//	         Patterns: "failed to map data", "mapping config"
//
//	VAL001 - Validation: Document failed validation
//	         Action: Review the report errors for the failing checks
//	         Patterns: "document failed validation"
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Configuration missing: Configuration directory is incomplete
//	         Action: Run the configuration check and add the missing files
//	         Patterns: "schema directory not found", "configuration not found"
//
//	CFG002 - Configuration invalid: A configuration file could not be read
//	         Action: Fix the syntax of the file named in the logs
//	         Patterns: "validation rules:", "entity dictionary:", "vendor patterns:"
//
// # Document Store Errors (DB001-DB099)
//
//	DB001 - Not found: Document not found
//	        Action: Verify the document ID
//	        Patterns: "document not found"
//
//	DB002 - Connection refused: Unable to connect to the document store
//	        Action: Please try again in a few moments
//	        Patterns: "connection refused"
//
//	DB003 - Connection reset: Document store connection was interrupted
//	        Action: Please try again
//	        Patterns: "connection reset"
//
//	DB004 - Locked: Document store was busy with conflicting operations
//	        Action: Please try again
//	        Patterns: "deadlock", "database is locked"
//
//	DB005 - Disabled: No document store is configured
//	        Action: Configure CDM_DATABASE_URL to store documents
//	        Patterns: "document store not configured"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Too large: Request body exceeds the size limit
//	         Action: Send a smaller extraction payload
//	         Patterns: "request body too large", "document text too large"
//
//	REQ002 - Bad request: Request body is not valid JSON
//	         Action: Check the request format
//	         Patterns: "invalid request body"
//
//	REQ003 - System busy: Too many documents in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent documents"
//
//	REQ004 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	REQ005 - Request timeout: Request timed out
//	         Action: Please try again later
//	         Patterns: "context deadline exceeded", "timeout"
//
//	REQ006 - Rate limited: Too many requests from one client
//	         Action: Please wait a minute and try again
//	         Patterns: "rate limit exceeded"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Pipeline Errors
	// =========================================================================
	{
		pattern: "failed to classify document type",
		msg: UserMessage{
			Message: "Document type could not be determined",
			Action:  "Check that the text contains invoice or purchase order wording",
			Code:    "CLS001",
		},
	},
	{
		pattern: "failed to extract data",
		msg: UserMessage{
			Message: "No extraction data is available for the document",
			Action:  "Run the document through the extraction service and resend",
			Code:    "EXT001",
		},
	},
	{
		pattern: "parse raw extraction",
		msg: UserMessage{
			Message: "Extraction data is not in the expected format",
			Action:  "Send the extraction service output unchanged",
			Code:    "EXT002",
		},
	},
	{
		pattern: "fields: expected",
		msg: UserMessage{
			Message: "Extraction data is not in the expected format",
			Action:  "Send the extraction service output unchanged",
			Code:    "EXT002",
		},
	},
	{
		pattern: "failed to map data",
		msg: UserMessage{
			Message: "Extracted data could not be mapped to the canonical model",
			Action:  "Check the mapping configuration for this document type and vendor",
			Code:    "MAP001",
		},
	},
	{
		pattern: "mapping config",
		msg: UserMessage{
			Message: "Extracted data could not be mapped to the canonical model",
			Action:  "Check the mapping configuration for this document type and vendor",
			Code:    "MAP001",
		},
	},
	{
		pattern: "document failed validation",
		msg: UserMessage{
			Message: "Document failed validation",
			Action:  "Review the report errors for the failing checks",
			Code:    "VAL001",
		},
	},

	// =========================================================================
	// Configuration Errors
	// =========================================================================
	{
		pattern: "schema directory not found",
		msg: UserMessage{
			Message: "Configuration directory is incomplete",
			Action:  "Run the configuration check and add the missing files",
			Code:    "CFG001",
		},
	},
	{
		pattern: "configuration not found",
		msg: UserMessage{
			Message: "Configuration directory is incomplete",
			Action:  "Run the configuration check and add the missing files",
			Code:    "CFG001",
		},
	},
	{
		pattern: "validation rules:",
		msg: UserMessage{
			Message: "A configuration file could not be read",
			Action:  "Fix the syntax of the file named in the logs",
			Code:    "CFG002",
		},
	},
	{
		pattern: "entity dictionary:",
		msg: UserMessage{
			Message: "A configuration file could not be read",
			Action:  "Fix the syntax of the file named in the logs",
			Code:    "CFG002",
		},
	},
	{
		pattern: "vendor patterns:",
		msg: UserMessage{
			Message: "A configuration file could not be read",
			Action:  "Fix the syntax of the file named in the logs",
			Code:    "CFG002",
		},
	},

	// =========================================================================
	// Document Store Errors
	// =========================================================================
	{
		pattern: "document not found",
		msg: UserMessage{
			Message: "Document not found",
			Action:  "Verify the document ID",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the document store",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Document store connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Document store was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "document store not configured",
		msg: UserMessage{
			Message: "Document storage is disabled",
			Action:  "Configure CDM_DATABASE_URL to store documents",
			Code:    "DB005",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Document store was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},

	// =========================================================================
	// Request Errors
	// =========================================================================
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Request body exceeds the size limit",
			Action:  "Send a smaller extraction payload",
			Code:    "REQ001",
		},
	},
	{
		pattern: "document text too large",
		msg: UserMessage{
			Message: "Document text exceeds the size limit",
			Action:  "Send a smaller document",
			Code:    "REQ001",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "Request body is not valid JSON",
			Action:  "Check the request format",
			Code:    "REQ002",
		},
	},
	{
		pattern: "too many concurrent documents",
		msg: UserMessage{
			Message: "System is busy processing other documents",
			Action:  "Please wait a moment and try again",
			Code:    "REQ003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "REQ005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "REQ005",
		},
	},
	{
		pattern: "rate limit exceeded",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a minute and try again",
			Code:    "REQ006",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(ErrClassification)
//	// msg.Code == "CLS001"
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

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
