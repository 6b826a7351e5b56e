/*
Package db contains the tools the checker uses to talk to PostgreSQL safely.

There are tools for:
- opening a single connection handle from typed configuration
- transactions (including rollbacks on error or panic)
- mapping driver errors onto a few package level errors
- observability (query spans and connection stats)
- a health check that also reports the server version
*/
package db
