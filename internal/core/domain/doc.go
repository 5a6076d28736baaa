// Package domain holds the types shared by every layer of contextkb:
// extracted pages and their chunks, the metadata bag stored beside each
// vector, the collection contract, ingestion status and the error
// taxonomy surfaced to callers.
//
// Domain imports the standard library only. Everything else in the
// module depends on it and it depends on nothing in the module.
package domain
