package env

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var Env map[string]string

var envFiles = []string{
	".env",          // Current directory
	"../../.env",    // From cmd/toolfox to project root
	"../../../.env", // Fallback for deeper nesting
}

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func SetupEnvFile() {
	if !TrySetupEnvFile() {
		panic("No .env file found in any of the expected locations")
	}
}

// TrySetupEnvFile loads the first .env file found and reports whether one was read.
// The CLI uses it so it can run on plain process environment.
func TrySetupEnvFile() bool {
	for _, envFile := range envFiles {
		vals, err := godotenv.Read(envFile)
		if err == nil {
			Env = vals
			return true
		}
	}
	return false
}

// Environ merges the process environment with the loaded .env values.
// Values from the .env file win, matching GetEnv.
func Environ() map[string]string {
	out := make(map[string]string, len(Env)+32)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	for k, v := range Env {
		out[k] = v
	}
	return out
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
