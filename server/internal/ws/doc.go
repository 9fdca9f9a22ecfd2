// Package ws implements the WebSocket hub that pushes live plant events to
// dashboard clients.
//
// New(snapshot, interval) creates a Hub. snapshot returns the current alert
// list; it is sent to each client on connect and re-broadcast on every tick
// of Hub.Run. Hub.Publish pushes one event to every client as it happens.
//
// Message format sent to clients:
//
//	{
//	  "event": "alerts" | "sensor" | "alert" | "notification" | "popup" | "jobs" | "anomaly",
//	  "data":  { ... }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The hub is mounted at /ws/stream by the server.
package ws
