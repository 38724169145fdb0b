// Package redis stores sessions in Redis behind a circuit breaker so a Redis
// outage fails logins fast instead of stalling every request.
package redis
