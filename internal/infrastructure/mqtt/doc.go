// Package mqtt publishes netpanel status samples to an MQTT broker.
//
// The client is publish-only: each collected router status sample goes to
// <topic_prefix>/status/<endpoint>, and service availability is announced
// on <topic_prefix>/service/status with a retained online/offline value
// backed by a Last Will.
//
// # Configuration
//
//	mqtt:
//	  enabled: true
//	  broker:
//	    host: "localhost"
//	    port: 1883
//	    client_id: "netpanel"
//	  qos: 1
//	  topic_prefix: "netpanel"
//
// MQTT is optional; when disabled the collector simply skips publication.
package mqtt
