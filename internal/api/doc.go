// Package api provides the optional HTTP status server for the connector.
//
// It exposes connector health and statistics over REST, and streams
// connector events and received MQTT messages to WebSocket clients.
//
// # Endpoints
//
//	GET /api/v1/health  200 when connected, 503 otherwise (no auth)
//	GET /api/v1/status  connector.Stats as JSON
//	GET /api/v1/ws      WebSocket event stream
//
// When api.jwt_secret is set, /status and /ws require an HS256 bearer
// token, passed in the Authorization header or the "token" query parameter
// (browsers cannot set headers on WebSocket upgrades). Tokens are minted
// with GenerateToken or the "token" command.
//
// # WebSocket channels
//
//   - connector.event: every sink message, {"level": ..., "message": ...}
//   - mqtt.message: every received message, {"topic": ..., "payload": ...}
//
// Clients subscribe with {"type":"subscribe","id":"1","payload":{"channels":["mqtt.message"]}}.
//
// The server follows the same lifecycle as the other components:
//
//	srv, err := api.New(deps)
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Close()
package api
