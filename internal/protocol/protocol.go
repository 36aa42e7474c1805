// Package protocol encodes the messages two peers exchange over a data channel.
//
// Control messages travel as JSON text frames shaped {"type": ..., "payload": {...}}.
// File bytes travel as binary frames: a 4-byte big-endian session id announced
// in START_FILE_TRANSFER, followed by at most one chunk of file data.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	pkgerrors "github.com/joe/peersync/pkg/errors"
	"github.com/joe/peersync/pkg/fileops"
)

// MessageType names a control message.
type MessageType string

// Message types.
const (
	TypeFileList             MessageType = "FILE_LIST"
	TypeRequestFile          MessageType = "REQUEST_FILE"
	TypeStartFileTransfer    MessageType = "START_FILE_TRANSFER"
	TypeFileTransferComplete MessageType = "FILE_TRANSFER_COMPLETE"
	TypeFileReceiveAck       MessageType = "FILE_RECEIVE_ACK"
)

// Exported constants.
const (
	// HeaderSize is the length of the session id prefix on binary frames.
	HeaderSize = 4
	// MaxFrameSize is the largest binary frame a peer may send.
	MaxFrameSize = HeaderSize + fileops.ChunkSize
)

// Exported variables.
var (
	ErrMalformed   = fmt.Errorf("%w: malformed message", pkgerrors.ErrProtocol)
	ErrUnknownType = fmt.Errorf("%w: unknown message type", pkgerrors.ErrProtocol)
	ErrBadFrame    = fmt.Errorf("%w: bad binary frame", pkgerrors.ErrProtocol)
)

// Message is implemented by every control message payload.
type Message interface {
	Type() MessageType
	validate() error
}

// FileMeta describes one file in a listing.
type FileMeta struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"lastModified"`
}

// FileList announces the sender's files for a folder.
type FileList struct {
	FolderID   string     `json:"folderId"`
	FolderName string     `json:"folderName"`
	Files      []FileMeta `json:"files"`
}

// Type implements Message.
func (FileList) Type() MessageType { return TypeFileList }

func (m FileList) validate() error {
	if m.FolderID == "" {
		return missing("folderId")
	}

	seen := make(map[string]struct{}, len(m.Files))

	for _, file := range m.Files {
		if file.Name == "" {
			return missing("files[].name")
		}

		if file.Size < 0 {
			return fmt.Errorf("%w: negative size for %q", ErrMalformed, file.Name)
		}

		if _, dup := seen[file.Name]; dup {
			return fmt.Errorf("%w: duplicate file %q", ErrMalformed, file.Name)
		}

		seen[file.Name] = struct{}{}
	}

	return nil
}

// RequestFile asks the receiver to upload a file.
type RequestFile struct {
	FolderID string `json:"folderId"`
	FileName string `json:"fileName"`
}

// Type implements Message.
func (RequestFile) Type() MessageType { return TypeRequestFile }

func (m RequestFile) validate() error {
	return requireFile(m.FolderID, m.FileName)
}

// StartFileTransfer opens an inbound transfer session.
type StartFileTransfer struct {
	FolderID  string `json:"folderId"`
	FileName  string `json:"fileName"`
	FileSize  int64  `json:"fileSize"`
	FileType  string `json:"fileType"`
	SessionID uint32 `json:"sessionId"`
	// LastModified (Unix ms) lets the receiver stamp the finished file so
	// both sides list the same timestamp. Zero when unknown.
	LastModified int64 `json:"lastModified,omitempty"`
}

// Type implements Message.
func (StartFileTransfer) Type() MessageType { return TypeStartFileTransfer }

func (m StartFileTransfer) validate() error {
	if err := requireFile(m.FolderID, m.FileName); err != nil {
		return err
	}

	if m.FileSize < 0 {
		return fmt.Errorf("%w: negative fileSize", ErrMalformed)
	}

	if m.SessionID == 0 {
		return missing("sessionId")
	}

	return nil
}

// FileTransferComplete follows the last chunk of a transfer.
type FileTransferComplete struct {
	FolderID  string `json:"folderId"`
	FileName  string `json:"fileName"`
	SessionID uint32 `json:"sessionId,omitempty"`
}

// Type implements Message.
func (FileTransferComplete) Type() MessageType { return TypeFileTransferComplete }

func (m FileTransferComplete) validate() error {
	return requireFile(m.FolderID, m.FileName)
}

// FileReceiveAck confirms a file was stored.
type FileReceiveAck struct {
	FolderID string `json:"folderId"`
	FileName string `json:"fileName"`
}

// Type implements Message.
func (FileReceiveAck) Type() MessageType { return TypeFileReceiveAck }

func (m FileReceiveAck) validate() error {
	return requireFile(m.FolderID, m.FileName)
}

// Encode renders a control message as a text frame.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msg.Type(), err)
	}

	data, err := json.Marshal(envelope{Type: msg.Type(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.Type(), err)
	}

	return data, nil
}

// Decode parses a text frame. Every failure wraps pkg/errors.ErrProtocol.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var (
		msg Message
		err error
	)

	switch env.Type {
	case TypeFileList:
		msg, err = decodeAs[FileList](env.Payload)
	case TypeRequestFile:
		msg, err = decodeAs[RequestFile](env.Payload)
	case TypeStartFileTransfer:
		msg, err = decodeAs[StartFileTransfer](env.Payload)
	case TypeFileTransferComplete:
		msg, err = decodeAs[FileTransferComplete](env.Payload)
	case TypeFileReceiveAck:
		msg, err = decodeAs[FileReceiveAck](env.Payload)
	case "":
		return nil, missing("type")
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %w", ErrMalformed, env.Type, err)
	}

	if err := msg.validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// EncodeChunk prefixes data with the session id header.
func EncodeChunk(sessionID uint32, data []byte) []byte {
	frame := make([]byte, HeaderSize+len(data))
	binary.BigEndian.PutUint32(frame, sessionID)
	copy(frame[HeaderSize:], data)

	return frame
}

// DecodeChunk splits a binary frame into its session id and data.
// The returned data aliases frame.
func DecodeChunk(frame []byte) (uint32, []byte, error) {
	if len(frame) < HeaderSize {
		return 0, nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrBadFrame, len(frame))
	}

	if len(frame) > MaxFrameSize {
		return 0, nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrBadFrame, len(frame), MaxFrameSize)
	}

	return binary.BigEndian.Uint32(frame), frame[HeaderSize:], nil
}

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func decodeAs[T Message](payload json.RawMessage) (Message, error) {
	var msg T

	if len(payload) == 0 || string(payload) == "null" {
		return nil, errors.New("payload is missing")
	}

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}

	return msg, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformed, field)
}

func requireFile(folderID, fileName string) error {
	if folderID == "" {
		return missing("folderId")
	}

	if fileName == "" {
		return missing("fileName")
	}

	return nil
}
