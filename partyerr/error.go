package partyerr

import (
	"errors"
	"strings"
)

type ErrorCode int

const (
	DefaultErr ErrorCode = -99

	InvalidSelfAction       ErrorCode = 1
	InsufficientPermissions ErrorCode = 2
	AlreadyMember           ErrorCode = 3
	NotFoundOrNotInParty    ErrorCode = 4
	NotFoundOrNotInvited    ErrorCode = 5
	PartyFull               ErrorCode = 6
	InvalidAction           ErrorCode = 7
	UserOffline             ErrorCode = 8
	NotificationFailure     ErrorCode = 9
)

var codeNames = map[ErrorCode]string{
	DefaultErr:              "unknown",
	InvalidSelfAction:       "invalidSelfAction",
	InsufficientPermissions: "insufficientPermissions",
	AlreadyMember:           "alreadyMember",
	NotFoundOrNotInParty:    "notFoundOrNotInParty",
	NotFoundOrNotInvited:    "notFoundOrNotInvited",
	PartyFull:               "partyFull",
	InvalidAction:           "invalidAction",
	UserOffline:             "userOffline",
	NotificationFailure:     "notificationFailure",
}

func (errorCode ErrorCode) Name() string {
	if name, ok := codeNames[errorCode]; ok {
		return name
	}
	return codeNames[DefaultErr]
}

// Err builds a coded error out of this code.
func (errorCode ErrorCode) Err(msgs ...string) Error {
	return New(errorCode, strings.Join(msgs, ", "))
}

// Error is the single failure type every party operation returns.
// The code is what the API layer translates to a transport response,
// the message is for logs only.
type Error struct {
	errorCode ErrorCode
	errMsg    string
}

func New(code ErrorCode, msg string) Error {
	return Error{code, msg}
}

// From coerces any error into a coded one, keeping an existing code.
func From(err error) Error {
	var pErr Error
	if errors.As(err, &pErr) {
		return pErr
	}
	return Error{DefaultErr, err.Error()}
}

// CodeOf reports the code carried by err, DefaultErr for uncoded errors.
func CodeOf(err error) ErrorCode {
	var pErr Error
	if errors.As(err, &pErr) {
		return pErr.errorCode
	}
	return DefaultErr
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func (err Error) Error() string {
	if err.errMsg == "" {
		return err.errorCode.Name()
	}
	return err.errorCode.Name() + ": " + err.errMsg
}

func (err Error) ErrorCode() ErrorCode {
	return err.errorCode
}

// stringer
func (err Error) String() string {
	return err.errMsg
}
