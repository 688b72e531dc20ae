// Package database provides connection pool management for the optional
// PostgreSQL message history store.
package database
