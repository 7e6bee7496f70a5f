// Package config loads the authd process configuration with koanf.
//
// Sources, later overriding earlier: built-in defaults, an optional YAML
// file, then environment variables prefixed AUTHCORE_. The first underscore
// after the prefix separates the section from the key, so
// AUTHCORE_JWT_ACCESS_TTL sets jwt.access_ttl and AUTHCORE_DATABASE_URL sets
// database.url.
//
// Loading fails when jwt.secret is absent. There is no fallback key.
package config
