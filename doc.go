/*
Package inflow provides a streaming pipeline for safely consuming inbound
HTTP content: request bodies are pulled in bounded chunks, decompressed
through a stateful codec and delivered downstream while a resource guard
enforces configurable ceilings on the decoded size and the number of parsed
fields.

The guard observes the stream after decompression, because decompression can
expand wire bytes by orders of magnitude: limiting only the wire-level stream
leaves a server open to decompression bombs. The guard therefore runs inside
the same chunk loop as the transform and aborts the stream before a ceiling
is exceeded, releasing every held resource upstream.

The pipeline is assembled from small stages under a common pull contract:

	raw bytes -> content.Source -> content decoder stages -> limit guard -> consumer

Each stage produces chunks on demand, one pull at a time, and both a blocking
caller and an event-driven caller can drive the same stages. See the content,
codec, limit and form packages for the individual stages and the entry
points.

The package itself wires the pipeline into a small server that parses posted
forms and replies with the parsed pairs, primarily as a demonstration and for
black box testing:

	inflow.Run(inflow.Options{Address: ":9090"})

The executable command is in cmd/inflowd.
*/
package inflow
