package constants

import "time"

// Content constants
const (
	// MaxTextLength is the maximum character count for channel titles and freet content
	MaxTextLength = 140

	// MaxUsernameLength bounds usernames accepted by the core
	MaxUsernameLength = 32
)

// HTTP boundary constants
const (
	// ActorHeader carries the authenticated actor's user id
	ActorHeader = "X-User-ID"

	// ActorContextKey is the gin context key holding the resolved actor id
	ActorContextKey = "actor"
)

// Event subjects
const (
	SubjectChannelDeleted    = "channel.deleted"
	SubjectFreetDeleted      = "freet.deleted"
	SubjectUserDeleted       = "user.deleted"
	SubjectConnectionCreated = "connection.created"
	SubjectFollowCreated     = "follow.created"
	SubjectSubscribeCreated  = "subscribe.created"
)

// PublishTimeout bounds delivery of one event after its mutation committed
const PublishTimeout = 2 * time.Second

// MetricsNamespace prefixes every exported Prometheus metric
const MetricsNamespace = "channelfeed"
