package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindValidation is raised before any request is sent.
	KindValidation Kind = iota + 1
	// KindTransport covers network failures and responses that are not the
	// API's JSON envelope.
	KindTransport
	// KindApplication is a well-formed response with success=false.
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	}
	return "unknown"
}

// Error is returned by every Client method that fails.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, zero when no response arrived
	Code    string // envelope code, e.g. SLOT_UNAVAILABLE
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s error %d %s: %s", e.Kind, e.Status, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// friendly replaces server messages for codes users commonly hit.
var friendly = map[string]string{
	"DUPLICATE_EMAIL":  "This email is already registered. Try signing in instead.",
	"SLOT_UNAVAILABLE": "That timeslot has just been taken. Please pick another one.",
	"SLOT_CONFLICT":    "Some of these timeslots already exist. Nothing was created.",
	"MISSING_TOKEN":    "Your session has expired. Please sign in again.",
	"INVALID_TOKEN":    "Your session has expired. Please sign in again.",
}

const transportMessage = "Could not reach the server. Check your connection and try again."

// UserMessage is the text to show for this error.
func (e *Error) UserMessage() string {
	if e.Kind == KindTransport {
		return transportMessage
	}
	if msg, ok := friendly[e.Code]; ok {
		return msg
	}
	return e.Message
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// HasCode reports whether err is an application error carrying code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindApplication && e.Code == code
}

// UserMessage returns the displayable text for any error a Client returned.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	return transportMessage
}
