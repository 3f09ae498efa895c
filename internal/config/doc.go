// Package config loads the client's YAML configuration.
//
// Secrets (bearer token, pre-shared encryption/signing key) are taken
// from the environment, either via ${VAR} expansion in the YAML or
// read directly by the caller; they never live in the file itself.
package config
