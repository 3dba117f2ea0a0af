package domain

// InboundEvent is a platform event as seen by the ingress router: the path
// that received it (which implies the target model), the originating channel,
// and the raw user text, possibly still carrying a mention token.
type InboundEvent struct {
	Endpoint  string
	ChannelID string
	Text      string
}
