// Package ws streams rendered plots over WebSocket.
//
// Each connection subscribes to the plot broadcaster with a small bounded
// queue. A slow client loses plots rather than slowing the render loop.
//
// Every text message is one JSON-encoded display.Plot, sent once per
// rendered display per tick. Clients send nothing; incoming frames are
// drained only to process pings and close frames.
//
// Example Usage:
//
//	handler := ws.NewHandler(console.Plots, metrics, logger)
//	router.GET("/ws/plots", handler.HandleConnection)
package ws
