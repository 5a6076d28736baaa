// Package services wires driven ports into the ingestion, query, health
// and watch use cases exposed by the driving ports.
//
// One document moves through extract, chunk, sanitise, embed and store
// in sequence. Services keep no per-request state, so concurrent
// ingestions and queries share them safely.
package services
