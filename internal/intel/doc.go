// Package intel defines the core types, interfaces, and scoring rules
// shared by the API layer, the ingestion agent, and the stores.
package intel
