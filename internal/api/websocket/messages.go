package websocket

import (
	"time"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Full parameter list of the current pass
	MessageTypeParameters MessageType = "parameters"

	// Progress counters and metadata readiness
	MessageTypeSyncProgress MessageType = "sync_progress"

	// Sent once when a pass completes
	MessageTypeSyncComplete MessageType = "sync_complete"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// ParametersData carries the flushed parameter list
type ParametersData struct {
	Parameters []types.Parameter `json:"parameters"`
}

// SyncProgressData carries the progress counters. Total is 0 while unknown.
type SyncProgressData struct {
	LoadedCount    int  `json:"loaded_count"`
	TotalCount     int  `json:"total_count"`
	MetadataLoaded bool `json:"metadata_loaded"`
}

// SyncCompleteData summarizes a completed pass
type SyncCompleteData struct {
	SessionID uuid.UUID `json:"session_id"`
	Count     int       `json:"count"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewParametersMessage(params []types.Parameter) Message {
	if params == nil {
		params = []types.Parameter{}
	}
	return NewMessage(MessageTypeParameters, ParametersData{Parameters: params})
}

func NewSyncProgressMessage(loaded, total int, metadataLoaded bool) Message {
	return NewMessage(MessageTypeSyncProgress, SyncProgressData{
		LoadedCount:    loaded,
		TotalCount:     total,
		MetadataLoaded: metadataLoaded,
	})
}

func NewSyncCompleteMessage(sessionID uuid.UUID, count int) Message {
	return NewMessage(MessageTypeSyncComplete, SyncCompleteData{
		SessionID: sessionID,
		Count:     count,
	})
}
