// Package influxdb provides InfluxDB connectivity for habitatT.
//
// It wraps the official influxdb-client-go v2 library and records
// authentication telemetry:
//   - auth_events: one point per login, logout and recovery attempt,
//     tagged by event, role and outcome
//   - auth_stores: periodic sizes of the revocation registry and the
//     reset token store
//
// Client implements auth.EventRecorder, so it can be handed straight to
// auth.NewService.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// # Error Handling
//
// Writes are non-blocking and batch errors are delivered to the callback
// registered with SetOnError. Connection and health check errors are
// returned directly.
package influxdb
