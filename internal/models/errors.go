package models

import "errors"

// Sentinel errors for the outcomes callers are expected to branch on.
// Handlers match with errors.Is and translate to a reason category; none of
// these should ever crash the process.
var (
	ErrAlreadyStamped      = errors.New("booth already stamped")
	ErrInvalidCode         = errors.New("invalid code")
	ErrBoothNotFound       = errors.New("booth not found")
	ErrBoothInactive       = errors.New("booth is not active")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInsufficientPool    = errors.New("not enough eligible entries")
	ErrInvalidWinnerSet    = errors.New("invalid winner set")
	ErrUnknownSecretKind   = errors.New("unknown secret kind")
)

// Stable reason categories used in API payloads.
const (
	ReasonAlreadyStamped = "already_stamped"
	ReasonInvalidCode    = "invalid_code"
)
