package store

import (
	"time"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// Op identifies a snippet operation. Each op has its own pending flag.
type Op string

// Snippet operations
const (
	OpListActive       Op = "list_active"
	OpFetchOne         Op = "fetch_one"
	OpCreate           Op = "create"
	OpUpdate           Op = "update"
	OpMoveToTrash      Op = "move_to_trash"
	OpListTrash        Op = "list_trash"
	OpRestoreFromTrash Op = "restore_from_trash"
	OpEmptyTrash       Op = "empty_trash"
	OpDeleteForever    Op = "delete_forever"
	OpToggleFavorite   Op = "toggle_favorite"
	OpListFavorites    Op = "list_favorites"
	OpSearch           Op = "search"
	OpListByTag        Op = "list_by_tag"
	OpFetchVersions    Op = "fetch_versions"
	OpRestoreVersion   Op = "restore_version"
)

// AllOps lists every operation in a stable order
var AllOps = []Op{
	OpListActive, OpFetchOne, OpCreate, OpUpdate, OpMoveToTrash, OpListTrash,
	OpRestoreFromTrash, OpEmptyTrash, OpDeleteForever, OpToggleFavorite,
	OpListFavorites, OpSearch, OpListByTag, OpFetchVersions, OpRestoreVersion,
}

// WriteOps are the operations that change server state
var WriteOps = []Op{
	OpCreate, OpUpdate, OpMoveToTrash, OpRestoreFromTrash, OpEmptyTrash,
	OpDeleteForever, OpToggleFavorite, OpRestoreVersion,
}

// Phase is the stage of an operation an event reports
type Phase int

const (
	PhaseRequested Phase = iota + 1
	PhaseSucceeded
	PhaseFailed
	PhaseTimedOut
	PhaseLocal
)

func (p Phase) String() string {
	switch p {
	case PhaseRequested:
		return "requested"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	case PhaseTimedOut:
		return "timed_out"
	case PhaseLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Action names a synchronous, local-only state change
type Action string

const (
	ActionClearSearchResults  Action = "clear_search_results"
	ActionClearTaggedResults  Action = "clear_tagged_results"
	ActionClearVersions       Action = "clear_versions"
	ActionClearError          Action = "clear_error"
	ActionClearMessage        Action = "clear_message"
	ActionResetOutcome        Action = "reset_outcome"
	ActionToggleFavoriteLocal Action = "toggle_favorite_local"
)

// ErrorKind classifies a failure
type ErrorKind string

const (
	KindLocal     ErrorKind = "local"
	KindRemote    ErrorKind = "remote"
	KindTransport ErrorKind = "transport"
	KindMalformed ErrorKind = "malformed"
	KindTimeout   ErrorKind = "timeout"
)

// TimeoutMessage is surfaced when the watchdog gives up on a pending op
const TimeoutMessage = "Request is taking too long. Please try again."

// ErrorInfo is the error state exposed to readers
type ErrorInfo struct {
	Op      Op        `json:"op"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
}

// Payload carries the result of a successful operation
type Payload struct {
	Snippet    *models.Snippet
	Snippets   []models.Snippet
	Versions   []models.Version
	Pagination *models.Pagination
	ID         string
	Message    string
}

// Event is one entry of the store's append-only event stream
type Event struct {
	Seq     uint64
	Op      Op
	Phase   Phase
	Request uint64
	Action  Action
	Payload Payload
	Err     *ErrorInfo
	At      time.Time
}
