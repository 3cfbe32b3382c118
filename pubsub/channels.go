// Package pubsub carries chat events between the relay and subscribers over
// Redis channels, and signs client channel subscriptions.
package pubsub

import "strings"

// ChatEvent is the event name clients bind to for chat messages.
const ChatEvent = "chat-event"

const propertyChannelPrefix = "presence-property-"

// PropertyChannel derives the channel name scoped to one property's chat.
func PropertyChannel(propertyID string) string {
	return propertyChannelPrefix + propertyID
}

// PropertyIDFromChannel extracts the property id from a channel name. A bare
// id is accepted as well.
func PropertyIDFromChannel(channel string) (string, bool) {
	channel = strings.TrimSpace(channel)
	id := strings.TrimPrefix(channel, propertyChannelPrefix)
	if id == "" || strings.Contains(id, "-") {
		return "", false
	}
	return id, true
}
