// Package protocol implements the framed link between the mount and a host:
// commands go down, acknowledgements, results and telemetry snapshots come
// back. Frames are [len][seq][payload...][crc hi][crc lo][0x7E] with VLQ
// encoded payloads.
package protocol

// Version is the link protocol version reported to hosts
const Version = "1"

// Frame layout
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 128
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F
)

// Host to mount commands
const (
	CmdQuery    = 1 // no args, answered with MsgStatus
	CmdGoto     = 2 // ra, dec
	CmdSync     = 3 // ra, dec
	CmdAbort    = 4
	CmdTracking = 5 // on
	CmdHome     = 6
	CmdEnable   = 7 // on
)

// Mount to host messages
const (
	MsgStatus = 32 // Telemetry
	MsgResult = 33 // command id, result code
)

// CommandName returns a printable name for a message or command id
func CommandName(id uint16) string {
	switch id {
	case CmdQuery:
		return "query"
	case CmdGoto:
		return "goto"
	case CmdSync:
		return "sync"
	case CmdAbort:
		return "abort"
	case CmdTracking:
		return "tracking"
	case CmdHome:
		return "home"
	case CmdEnable:
		return "enable"
	case MsgStatus:
		return "status"
	case MsgResult:
		return "result"
	}
	return "unknown"
}
