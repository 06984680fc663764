// Package events publishes scheduler events outside the process. Every event
// becomes an Envelope that is written to the structured log and, when
// brokers are configured, to a Kafka topic.
package events
