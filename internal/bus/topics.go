// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import "strings"

// Subscription topics, in the slash/hash notation the original detector
// network publishes under (an MQTT-style hierarchy bridged onto NATS).
const (
	TopicData      = "muonpi/data/#"
	TopicL1Data    = "muonpi/l1data/#"
	TopicLog       = "muonpi/log/#"
	TopicEvents    = "muonpi/events"
	TopicCluster   = "muonpi/cluster"
	TopicTrigger   = "muonpi/trigger"
	TopicLogPrefix = "muonpi/log"
)

// TriggerTopic returns the publication topic for a station's trigger
// transitions.
func TriggerTopic(user, station string) string {
	return TopicTrigger + "/" + user + "/" + station
}

// LogTopic returns the publication topic for a station's detector log
// entries.
func LogTopic(user, station string) string {
	return TopicLogPrefix + "/" + user + "/" + station
}

// ToSubject converts a slash/hash topic to its NATS subject form: '/'
// becomes '.', a trailing '#' becomes '>', and a leading '+' segment
// becomes '*'.
func ToSubject(topic string) string {
	segments := strings.Split(topic, "/")
	for i, seg := range segments {
		switch seg {
		case "#":
			segments[i] = ">"
		case "+":
			segments[i] = "*"
		}
	}
	return strings.Join(segments, ".")
}
