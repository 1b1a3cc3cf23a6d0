// Package domain contains the core value types and errors for ebridge.
//
// This package represents the innermost layer of the architecture. It has no
// dependencies on transport, logging, or processing concerns.
//
// # Entities
//
//   - [Block]: one data block with its per-connection sequence number
//   - [Envelope]: a block tagged with its originating connection
//   - [Batch]: envelopes and their payloads kept in lock-step for processing
//   - [Stats]: rolling bandwidth and lifetime byte totals of a connection
package domain
