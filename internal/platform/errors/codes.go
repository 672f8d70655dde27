// Package errors provides structured error handling for the temporal engine.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Event log errors
	CodeEventEmptyGameID    Code = "EVENT_EMPTY_GAME_ID"
	CodeEventEmptyType      Code = "EVENT_EMPTY_TYPE"
	CodeEventUnknownType    Code = "EVENT_UNKNOWN_TYPE"
	CodeEventZeroTimestamp  Code = "EVENT_ZERO_TIMESTAMP"
	CodeEventOutOfOrder     Code = "EVENT_OUT_OF_ORDER"
	CodeEventInvalidPayload Code = "EVENT_INVALID_PAYLOAD"

	// Checkpoint errors
	CodeCheckpointConflict     Code = "CHECKPOINT_CONFLICT"
	CodeCheckpointInvalidAsOf  Code = "CHECKPOINT_INVALID_AS_OF"
	CodeCheckpointInvalidScope Code = "CHECKPOINT_INVALID_SCOPE"

	// Resolver errors
	CodeResolveBeforeGenesis Code = "RESOLVE_BEFORE_GENESIS"
	CodeResolveInvalidAt     Code = "RESOLVE_INVALID_AT"

	// Lineup errors
	CodeLineupFull          Code = "LINEUP_FULL"
	CodeLineupPlayerAbsent  Code = "LINEUP_PLAYER_ABSENT"
	CodeLineupPlayerOnFloor Code = "LINEUP_PLAYER_ON_FLOOR"

	// Age/duration errors
	CodeBirthDateUnknown   Code = "BIRTH_DATE_UNKNOWN"
	CodeDurationInvalidRef Code = "DURATION_INVALID_REFERENCE"
	CodeDurationBadUnit    Code = "DURATION_BAD_UNIT"

	// Panel errors
	CodePanelRowConflict   Code = "PANEL_ROW_CONFLICT"
	CodePanelUnknownColumn Code = "PANEL_UNKNOWN_COLUMN"
	CodePanelMissingBounds Code = "PANEL_MISSING_POSSESSION_BOUNDS"
	CodePanelEmptyGameID   Code = "PANEL_EMPTY_GAME_ID"
	CodePanelInvalidSeq    Code = "PANEL_INVALID_POSSESSION_SEQ"

	// Bio errors
	CodeBioEmptyPlayerID    Code = "BIO_EMPTY_PLAYER_ID"
	CodeBioInvalidPrecision Code = "BIO_INVALID_PRECISION"
	CodeBioInvalidBirthDate Code = "BIO_INVALID_BIRTH_DATE"

	// Transport errors
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Ingest grant errors
	CodeIngestGrantInvalid Code = "INGEST_GRANT_INVALID"
	CodeIngestGrantExpired Code = "INGEST_GRANT_EXPIRED"
	CodeIngestGrantScope   Code = "INGEST_GRANT_SCOPE"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeUnavailable   Code = "UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeEventEmptyGameID,
		CodeEventEmptyType,
		CodeEventUnknownType,
		CodeEventZeroTimestamp,
		CodeEventOutOfOrder,
		CodeEventInvalidPayload,
		CodeCheckpointInvalidAsOf,
		CodeCheckpointInvalidScope,
		CodeResolveInvalidAt,
		CodeDurationInvalidRef,
		CodeDurationBadUnit,
		CodePanelEmptyGameID,
		CodePanelInvalidSeq,
		CodeBioEmptyPlayerID,
		CodeBioInvalidPrecision,
		CodeBioInvalidBirthDate,
		CodeInvalidRequest:
		return http.StatusBadRequest

	// UnprocessableEntity - input parsed but state disallows it
	case CodeLineupFull,
		CodeLineupPlayerAbsent,
		CodeLineupPlayerOnFloor,
		CodeBirthDateUnknown,
		CodePanelMissingBounds,
		CodePanelUnknownColumn:
		return http.StatusUnprocessableEntity

	// NotFound - no data at or before the requested instant
	case CodeNotFound,
		CodeResolveBeforeGenesis:
		return http.StatusNotFound

	// Conflict - unique key already taken
	case CodeCheckpointConflict,
		CodePanelRowConflict,
		CodeAlreadyExists:
		return http.StatusConflict

	// Unauthorized - grant verification failures
	case CodeIngestGrantInvalid,
		CodeIngestGrantExpired:
		return http.StatusUnauthorized

	case CodeIngestGrantScope:
		return http.StatusForbidden

	case CodeUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
