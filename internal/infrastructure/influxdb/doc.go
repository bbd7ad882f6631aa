// Package influxdb writes Z-Wave value samples to InfluxDB 2.x.
//
// Writes go through the client library's non-blocking write API, which
// batches points (influxdb.batch_size) and flushes them on an interval
// (influxdb.flush_interval, seconds). Failures are reported asynchronously
// through SetOnError. Close flushes whatever is still buffered.
package influxdb
