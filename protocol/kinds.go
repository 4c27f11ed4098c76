package protocol

import "github.com/jurbbo/udp-multiplayer/internal/bitutil"

// ClientAction is the low-nibble message kind a client sends (§3).
type ClientAction uint8

const (
	ClientNone              ClientAction = 0
	ClientDataPushRequest   ClientAction = 1
	ClientDataRequest       ClientAction = 2
	ClientPlayerEnterRequest ClientAction = 3
	ClientPlayerLeaveRequest ClientAction = 4
	ClientPingRequest       ClientAction = 5
)

// ServerAction is the high-nibble message kind a server sends (§3).
type ServerAction uint8

const (
	ServerNone                 ServerAction = 0
	ServerDataPush             ServerAction = 1
	ServerDataPushDoneResponse ServerAction = 2
	ServerDataResponse         ServerAction = 3
	ServerPlayerCreatedResponse ServerAction = 4
	ServerPlayerEnterPush      ServerAction = 5
	ServerPlayerLeaveResponse  ServerAction = 6
	ServerPlayerLeavePush      ServerAction = 7
	ServerPongResponse         ServerAction = 8
)

// KindByte packs a ServerAction (high nibble) and ClientAction (low
// nibble) into the single "kind" header byte. Exactly one side is
// expected to be non-zero for a valid message.
func KindByte(server ServerAction, client ClientAction) byte {
	return bitutil.PackNibbles(uint8(server), uint8(client))
}

// SplitKindByte unpacks a kind byte into its ServerAction and
// ClientAction halves.
func SplitKindByte(b byte) (ServerAction, ClientAction) {
	return ServerAction(bitutil.HighNibble(b)), ClientAction(bitutil.LowNibble(b))
}

// Header builds the 2-byte message header (§3).
func Header(handle uint8, server ServerAction, client ClientAction) [2]byte {
	return [2]byte{handle, KindByte(server, client)}
}
