// Package influxdb writes feedback telemetry to InfluxDB v2.
//
// The cabinet loop samples controller statistics on the telemetry interval
// and hands them to this package; writes are batched and non-blocking so a
// slow or absent InfluxDB never stalls the output tick.
//
// Measurements:
//
//	controller_stats tags controller,state; frame/byte/failure counters, latency
//	cabinet        tags cabinet; tick counters and tick duration
//	artnet_engine  packets sent, send failures, disabled flag
//	comproxy       tags controller; requests, retries, failures
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteControllerStats(ctrl.Stats())
//
// Async write failures are delivered to the SetOnError callback.
package influxdb
