// Package config loads calconnect's runtime configuration from the environment.
package config
