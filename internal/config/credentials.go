package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/roach88/components/internal/ir"
)

// providerVars maps provider -> environment variable -> credential key.
var providerVars = map[string]map[string]string{
	"aws": {
		"AWS_ACCESS_KEY_ID":     "accessKeyId",
		"AWS_SECRET_ACCESS_KEY": "secretAccessKey",
		"AWS_REGION":            "region",
	},
	"google": {
		"GOOGLE_APPLICATION_CREDENTIALS": "applicationCredentials",
		"GOOGLE_PROJECT_ID":              "projectId",
		"GOOGLE_CLIENT_EMAIL":            "clientEmail",
		"GOOGLE_PRIVATE_KEY":             "privateKey",
	},
	"tencent": {
		"TENCENT_APP_ID":     "AppId",
		"TENCENT_SECRET_ID":  "SecretId",
		"TENCENT_SECRET_KEY": "SecretKey",
	},
	"docker": {
		"DOCKER_USERNAME": "username",
		"DOCKER_PASSWORD": "password",
	},
}

// EnvFile returns the .env file credentials are read from: .env.<stage>
// when it exists, else .env, else "".
func EnvFile(dir, stage string) string {
	candidates := []string{".env"}
	if stage != "" {
		candidates = []string{".env." + stage, ".env"}
	}
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// Credentials reads provider credentials from the env file of stage in
// dir. Only known provider variables are picked up, and a provider is
// present only when at least one of its variables is set. The process
// environment is not consulted.
func Credentials(dir, stage string) (ir.Credentials, error) {
	creds := ir.Credentials{}
	path := EnvFile(dir, stage)
	if path == "" {
		return creds, nil
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for provider, mapping := range providerVars {
		for envVar, key := range mapping {
			value, ok := vars[envVar]
			if !ok {
				continue
			}
			if creds[provider] == nil {
				creds[provider] = map[string]string{}
			}
			creds[provider][key] = value
		}
	}
	return creds, nil
}

// Env returns a lookup over the process environment with the env file of
// stage in dir underneath it. Process variables win, as with
// godotenv.Load.
func Env(dir, stage string) (func(name string) (string, bool), error) {
	vars := map[string]string{}
	if path := EnvFile(dir, stage); path != "" {
		var err error
		if vars, err = godotenv.Read(path); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return func(name string) (string, bool) {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
		v, ok := vars[name]
		return v, ok
	}, nil
}
