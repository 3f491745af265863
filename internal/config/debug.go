package config

import "os"

func IsDebug() bool {
	return os.Getenv("SOVEREIGN_DEBUG") == "1"
}
