// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package bus is the message-bus boundary: topic naming, wire decoding of
inbound detector messages, wire encoding of outbound cluster messages,
and a resilient NATS JetStream publisher/subscriber pair.

The publisher and subscriber are built behind a "nats" build tag, the
same split the message-bus link in the wider retrieved stack uses, so a
binary can be built without pulling in the NATS client when only the
decode/encode helpers are needed (e.g. in tests). Build with
-tags=nats to get the real implementation; without it, NewPublisher
and NewSubscriber return an error.

Topic naming bridges two conventions: the detector network's
slash/hash MQTT-style hierarchy (muonpi/data/#) and NATS subject
syntax (muonpi.data.>). ToSubject converts between them.
*/
package bus
