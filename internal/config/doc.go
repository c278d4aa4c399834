// Package config resolves CLI settings from flags, SERVERLESS_* environment
// variables and an optional components.{yaml,toml,json} file, and discovers
// provider credentials from .env files.
package config
