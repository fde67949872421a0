// Package influxdb writes the bridge's aggregated readings to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched point writing and health monitoring. Both InfluxDB 2.x
// (org, bucket, token) and 1.8+ (database, username, password through the
// v2 compatibility endpoint) are supported.
//
// # Point Layout
//
// Every poll cycle writes one point per device that produced a new sample:
//
//	Temp,Device=Kitchen BattVoltage=2.95,Humidity=41.5,Temp=21.3 <now>
//
// The measurement ("Temp") and the tag key ("Device") come from config.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without it
//	}
//	defer client.Close()
//
//	client.WriteReading("Kitchen", fields, time.Now())
//	client.Flush()
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write operations are non-blocking; failures are delivered to the
// SetOnError callback. Points that fail are retried by the library up to
// retry_buffer_limit. Connection and health check errors are returned
// directly.
package influxdb
