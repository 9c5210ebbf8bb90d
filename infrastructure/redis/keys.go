// Package redis implements the shared presence store and topic registry on
// top of a Redis instance reachable from every server process. Sets give the
// atomic add/remove/members primitives, pub/sub carries publishes across
// processes.
package redis

import (
	"chat-relay/domain"
)

const (
	connKeyPrefix  = "presence:conn:"
	userKeyPrefix  = "presence:user:"
	topicKeyPrefix = "topic:"
	fanoutPrefix   = "fanout."

	// fanoutPattern is what every process's relay worker PSUBSCRIBEs to.
	fanoutPattern = fanoutPrefix + "*"
)

func connKey(conn domain.ConnectionID) string {
	return connKeyPrefix + string(conn)
}

func userKey(identity domain.Identity) string {
	return userKeyPrefix + string(identity)
}

func topicKey(topic domain.Topic) string {
	return topicKeyPrefix + string(topic)
}

func fanoutChannel(topic domain.Topic) string {
	return fanoutPrefix + string(topic)
}
