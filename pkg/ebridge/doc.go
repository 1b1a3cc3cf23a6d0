// Package ebridge provides a bidirectional block transport between many
// remote peers and a local processing stage.
//
// Peers exchange length-prefixed frames over TCP or TLS. Each connection runs
// its bytes through an inbound and an outbound stage pipeline (see
// pkg/pipeline). On the server, blocks from every connection are batched,
// handed to a [Processor] on a separate goroutine, and the results are routed
// back to the connection each block came from. On the client, a single
// connection is kept alive with exponential backoff.
//
// # Server
//
//	srv, err := ebridge.NewServer(ebridge.ServerConfig{
//	    Host:      "0.0.0.0",
//	    Port:      9000,
//	    Stack:     ebridge.FramedStack(0),
//	    Processor: myProcessor,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run(ctx)
//	// ...
//	_ = srv.Destroy()
//
// # Client
//
//	cl, err := ebridge.NewClient(ebridge.ClientConfig{Host: "10.0.0.5", Port: 9000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = cl.Start(ctx)
//	for !cl.Write([][]byte{img}) {
//	    time.Sleep(time.Millisecond)
//	}
//	if blocks, ok := cl.Read(); ok {
//	    // ...
//	}
//	_ = cl.Destroy()
//
// Write never blocks: it accepts one request at a time and returns false
// while the previous one is still waiting to be sent. Read never blocks
// either.
//
// # Events and Plugins
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and pass it with
// [WithEventHandler] to observe state changes, connections and reconnects.
// Handlers run on the event loop and must return quickly.
//
// A [Plugin] registered with [WithPlugin] is initialized when the server
// starts and shut down, in reverse order, when it stops.
package ebridge
