// Package immich is a small REST client for the Immich server API,
// covering the health check and job control used around imports.
package immich
