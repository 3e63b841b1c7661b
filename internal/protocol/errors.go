package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadCodec        = "E_BAD_CODEC"
	ErrVersion         = "E_VERSION"

	// Room routing/state.
	ErrRoomFull     = "E_ROOM_FULL"
	ErrRoomNotFound = "E_ROOM_NOT_FOUND"
	ErrMatchOver    = "E_MATCH_OVER"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadCodec:        {},
	ErrVersion:         {},
	ErrRoomFull:        {},
	ErrRoomNotFound:    {},
	ErrMatchOver:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
