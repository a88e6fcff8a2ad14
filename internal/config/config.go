// Package config resolves the server's startup configuration from CLI
// flags layered over env/built-in defaults, grounded on the teacher's
// viper-based internal/config and extended with github.com/spf13/pflag
// for the POSIX-style flag surface spec §6 requires.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully-resolved startup configuration.
type Config struct {
	Host       string
	Port       int
	Dir        string
	DBFilename string

	// IsReplica is true and ReplicaOfHost/ReplicaOfPort are set when
	// --replicaof was given, naming the leader this server should attach
	// to as a follower (spec §4.10).
	ReplicaOfHost string
	ReplicaOfPort int
	IsReplica     bool

	Log LogConfig
}

// LogConfig defines logging verbosity and output style, unchanged from
// the teacher.
type LogConfig struct {
	Level  string
	Format string
}

// ErrHelpRequested is returned by Load when --help/-h was given, after
// Load has printed the flag usage; the caller should exit 0.
var ErrHelpRequested = errors.New("help requested")

// Load parses argv (excluding the program name) into a Config, layering
// pflag values over viper's env/built-in defaults (no config file is
// read), as the teacher's Load did for its own settings.
func Load(argv []string) (*Config, error) {
	setDefaults()

	fs := pflag.NewFlagSet("rediscore-server", pflag.ContinueOnError)
	port := fs.Int("port", viper.GetInt("server.port"), "listening port (1..65535)")
	dir := fs.String("dir", viper.GetString("persistence.dir"), "snapshot directory")
	dbfilename := fs.String("dbfilename", viper.GetString("persistence.dbfilename"), "snapshot file name")
	replicaof := fs.String("replicaof", "", `"<host> <port>" of a leader to replicate from`)
	logLevel := fs.String("log-level", viper.GetString("log.level"), "debug|info|warn|error")
	logFormat := fs.String("log-format", viper.GetString("log.format"), "json|console")
	help := fs.BoolP("help", "h", false, "show usage")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}
	if *help {
		fs.PrintDefaults()
		return nil, ErrHelpRequested
	}

	if *port < 1 || *port > 65535 {
		return nil, fmt.Errorf("invalid --port %d: must be in 1..65535", *port)
	}

	cfg := &Config{
		Host:       "0.0.0.0",
		Port:       *port,
		Dir:        *dir,
		DBFilename: *dbfilename,
		Log:        LogConfig{Level: *logLevel, Format: *logFormat},
	}

	if *replicaof != "" {
		raw := *replicaof
		if len(strings.Fields(raw)) == 1 && fs.NArg() == 1 {
			raw += " " + fs.Arg(0) // --replicaof <host> <port> as two words
		}
		host, portNum, err := parseReplicaOf(raw)
		if err != nil {
			return nil, err
		}
		cfg.IsReplica = true
		cfg.ReplicaOfHost = host
		cfg.ReplicaOfPort = portNum
	}

	return cfg, nil
}

// parseReplicaOf accepts both "<host> <port>" (one argument, space
// separated, per --replicaof "127.0.0.1 6380") and "<host>" "<port>"
// passed as two separate words already split by the shell.
func parseReplicaOf(raw string) (string, int, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("invalid --replicaof %q: expected \"<host> <port>\"", raw)
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid --replicaof port %q", fields[1])
	}
	return fields[0], port, nil
}

func setDefaults() {
	viper.SetEnvPrefix("REDISCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 6379)
	viper.SetDefault("persistence.dir", "/tmp")
	viper.SetDefault("persistence.dbfilename", "dump.rdb")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}
