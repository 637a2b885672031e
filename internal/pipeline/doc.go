// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package pipeline implements the sink/source/collection capability model
described by the cluster's pipeline fabric.

	hits := pipeline.NewSource[muon.Hit]()
	hits.Subscribe("coincidence", coincidenceFilter)

	dedup := pipeline.NewThreadedSink("dedup", func(ctx context.Context, h muon.Hit) error {
	    return stationSupervisor.Process(ctx, h)
	}, nil)

A Sink[T] is any type exposing Submit(T); a Source[T] owns named
subscriber sinks and fans out on Emit; a CollectionSink[T] is itself a
Sink that forwards to a dynamic list of downstream sinks, letting a
component stand in as "one sink that is really several" without
multiple inheritance. ThreadedSink[T] adds a dedicated worker and an
unbounded FIFO queue so Submit never blocks its caller.
*/
package pipeline
