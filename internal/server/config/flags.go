package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   credential signing secret key
//	-t int      access credential validity, minutes
//	-r int      refresh credential validity, minutes
//	-k int      bcrypt cost
//	-i          allow insecure (non-Secure) cookies for local development
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the JSON config flags.
// Duration flags are accepted as integers in minutes and converted to
// time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-r", "-k", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "signing secret key")

	accessValidity := fs.Int("t", int(config.AccessTokenValidity.Minutes()), "access_token_validity (in minutes)")
	refreshValidity := fs.Int("r", int(config.RefreshTokenValidity.Minutes()), "refresh_token_validity (in minutes)")

	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")
	insecureCookies := fs.Bool("i", !config.SecureCookies, "allow insecure cookies")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidity = time.Duration(*accessValidity) * time.Minute
	config.RefreshTokenValidity = time.Duration(*refreshValidity) * time.Minute
	config.SecureCookies = !*insecureCookies
}
