package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideVars name environment variables that point at an env file and win
// over the --env flag.
var OverrideVars = []string{"OUTAGE_WATCH_ENV_FILE", "HORSE_ENV_FILE"}

// EnvLoader loads .env files with a predictable override order.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	return &EnvLoader{
		value:       fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Load resolves the env file in order: override variables, the --env value,
// its basename in the working directory, then the default path.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	log.SetOutput(os.Stderr)

	for _, envVar := range OverrideVars {
		custom := strings.TrimSpace(os.Getenv(envVar))
		if custom == "" {
			continue
		}
		if err := godotenv.Overload(custom); err == nil {
			log.Printf("Loaded environment from %s: %s", envVar, custom)
			return custom, nil
		}
		log.Printf("Warning: failed to load %s=%s", envVar, custom)
	}

	for _, candidate := range l.candidates() {
		if err := godotenv.Overload(candidate); err == nil {
			log.Printf("Loaded environment from: %s", candidate)
			return candidate, nil
		}
	}

	return "", fmt.Errorf("failed to load env file from %s", l.requested())
}

func (l *EnvLoader) requested() string {
	if l.value != nil {
		if v := strings.TrimSpace(*l.value); v != "" {
			return v
		}
	}
	return l.defaultPath
}

func (l *EnvLoader) candidates() []string {
	requested := l.requested()
	out := []string{requested}
	if base := filepath.Base(requested); base != "" && base != requested {
		out = append(out, base)
	}
	if requested != l.defaultPath {
		out = append(out, l.defaultPath)
	}
	return out
}
