// Package pipeline implements the per-connection transform chain.
//
// A Pipeline is an ordered list of Stage values for one direction of one
// connection. Each stage consumes either raw bytes or an ordered sequence of
// blocks and produces one of the two; Append checks that adjacent stages agree,
// so a stack is validated once when the connection is built.
//
// Stages provided here:
//
//   - [Passthrough]: bytes => bytes (identity)
//   - [Splitter]: bytes => blocks (length-prefixed frames)
//   - [Joiner]: blocks => bytes (length-prefixed frames)
//   - [Transform]: blocks => blocks through an asynchronous function,
//     emitted strictly in submission order
//
// Stages never block. Write buffers input, Read returns whatever output is
// ready, and Tick drives internal asynchronous work.
package pipeline
