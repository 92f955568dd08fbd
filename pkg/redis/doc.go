// Package redis connects to Redis through go-redis/v9.
//
// Connect retries the initial ping, Healthcheck returns a check for readiness
// checks and Key builds namespaced keys such as "schedkit:busy:org-1". Config
// is read from REDIS_* environment variables.
package redis
