package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Command layer.
	ErrBadCommand    = "E_BAD_COMMAND"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRejected      = "E_REJECTED"
	ErrArenaFull     = "E_ARENA_FULL"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadCommand:      {},
	ErrInvalidTarget:   {},
	ErrRejected:        {},
	ErrArenaFull:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
