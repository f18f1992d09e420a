package config

import (
	"flag"
	"fmt"
	"strings"
)

var allowedFlags = []string{"-a", "-d", "-s", "-l", "-w", "-e", "-m", "-r", "-i"}

// parseFlags overrides config fields from command-line flags.
//
//	-a string     listen address (e.g. ":8080")
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret
//	-l string     log level
//	-w duration   anti-sniping window
//	-e duration   remaining time after an extension
//	-m float      minimum positive feedback percent
//	-r uint       retries of a unit of work after a transient failure
//	-i duration   expiry sweep interval
func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&c.Port, "a", c.Port, "address and port to run server")
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN")
	fs.StringVar(&c.JWTSecret, "s", c.JWTSecret, "JWT secret key")
	fs.StringVar(&c.LogLevel, "l", c.LogLevel, "log level")
	fs.DurationVar(&c.ExtendWindow, "w", c.ExtendWindow, "anti-sniping window")
	fs.DurationVar(&c.ExtendBy, "e", c.ExtendBy, "remaining time after an extension")
	fs.Float64Var(&c.MinPositivePercent, "m", c.MinPositivePercent, "minimum positive feedback percent")
	fs.Uint64Var(&c.MaxTxRetries, "r", c.MaxTxRetries, "transaction retries")
	fs.DurationVar(&c.SweepInterval, "i", c.SweepInterval, "expiry sweep interval")

	if err := fs.Parse(filterArgs(args, allowedFlags)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// filterArgs keeps only the allowed flags and their values, given either as
// "-f value" or "-f=value".
func filterArgs(args []string, allowed []string) []string {
	known := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		known[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			if _, ok := known[strings.SplitN(arg, "=", 2)[0]]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := known[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}
