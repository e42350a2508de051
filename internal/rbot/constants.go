package rbot

// Object tags and kinds reported by laser and scanner echoes.
const (
	TagWall      = "WALL"
	TagSentry    = "SENTRY"
	TagComponent = "COMPONENT"
	TagBot       = "BOT"

	KindMotherboard = "MOTHERBOARD"
)
