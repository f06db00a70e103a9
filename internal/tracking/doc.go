// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

/*
Package tracking records what users were shown and how they reacted.

# Exposures

ExposureTracker keeps one sorted set per user, exposure:{userID}, with content
IDs scored by the unix-millisecond time they were shown. Every write refreshes
the key TTL and prunes members older than the window, so a set never grows
past one window of history. Recording the same item twice only moves its
timestamp forward.

ExposureWriter puts these writes behind a bounded queue so the request path
never waits on the store. When the queue is full the batch is dropped and
counted in recommend_exposures_total{result="dropped"}.

# Feedback

FeedbackRecorder validates a FeedbackEvent and publishes it to the feedback
topic through watermill. Publishing is best effort: failures are logged and
counted, never returned. Only an invalid event is rejected.

FeedbackRouter consumes the topic with Recoverer, Retry and Throttle
middleware and hands each event to FeedbackConsumer, which:

  - appends it to the badger-backed FeedbackLog (keyed by event, so a
    redelivered message overwrites rather than duplicates)
  - moves the item in the hot:{contentType} pool by the feedback weight
  - marks engaged items (click, like, share, ...) as exposed

The transport is an in-process gochannel by default, or NATS JetStream
(optionally an embedded server) for multi-instance deployments.
*/
package tracking
