// Package influxdb records MQTT connector activity in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements
// are written:
//
//   - connector_events: one point per lifecycle event (connect attempts,
//     losses, scheduled reconnects, throttling, failed operations), tagged
//     with client_id, level and event
//   - mqtt_messages: one point per received message, tagged with client_id
//     and topic, with the payload size as the bytes field
//
// # Usage
//
//	recorder, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // recording is optional
//	}
//	defer recorder.Close()
//
//	conn.SetLogCallback(recorder.Callback(conn.ClientID()))
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval), so write
// failures are delivered to the SetOnError callback. Connection and health
// check errors are returned directly.
package influxdb
