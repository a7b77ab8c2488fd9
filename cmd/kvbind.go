package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leftmike/kvbind/config"
	"github.com/leftmike/kvbind/kv"
)

var (
	kvbindCmd = &cobra.Command{
		Use:   "kvbind",
		Short: "Manage embedded key-value databases",
		Long: "Kvbind works with pebble, badger, and bbolt databases configured with " +
			"a common set of options.",
		SilenceUsage:      true,
		PersistentPreRunE: kvbindPreRun,
		PersistentPostRun: kvbindPostRun,
	}

	logFile   = "kvbind.log"
	logLevel  = "info"
	logStderr = false
	logWriter io.WriteCloser

	configFile = "kvbind.hcl"
	noConfig   = false

	dbPath     = "kvbind.db"
	engineName = ""
	optionArgs = []string{}
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := kvbindCmd.PersistentFlags()

	fs.StringVar(&logFile, "log-file", logFile, "`file` to use for logging")
	fs.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	fs.BoolVarP(&logStderr, "log-stderr", "s", logStderr, "log to standard error")

	fs.StringVar(&configFile, "config-file", configFile, "`file` to load options from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load config file")

	fs.StringVarP(&dbPath, "db", "d", dbPath, "`directory` containing the database")
	fs.StringVar(&engineName, "engine", engineName,
		"storage engine: "+strings.Join(kv.Engines(), ", "))
	fs.StringArrayVarP(&optionArgs, "option", "o", optionArgs,
		"set an option: `name=value`; multiple allowed")
}

func Execute() error {
	return kvbindCmd.Execute()
}

func kvbindPreRun(cmd *cobra.Command, args []string) error {
	if !logStderr && logFile != "" {
		var err error
		logWriter, err = os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			logWriter = nil
			return fmt.Errorf("kvbind: %s", err)
		}
		log.SetOutput(logWriter)
	}

	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("kvbind: %s", err)
	}
	log.SetLevel(ll)

	log.WithFields(log.Fields{"pid": os.Getpid(), "command": cmd.Name()}).Info(
		"kvbind starting")
	cmd.Flags().Visit(
		func(flg *pflag.Flag) {
			log.WithField(flg.Name, flg.Value.String()).Debug("kvbind: flag")
		})
	return nil
}

func kvbindPostRun(cmd *cobra.Command, args []string) {
	log.WithField("pid", os.Getpid()).Info("kvbind done")

	if logWriter != nil {
		logWriter.Close()
		logWriter = nil
	}
}

// makeOptions builds the database options from the defaults, the config file, the
// --engine flag, and then each --option, in that order.
func makeOptions(cmd *cobra.Command, create bool) (kv.Options, error) {
	opts := kv.DefaultOptions()
	opts.CreateIfMissing = create

	if configFile != "" && !noConfig {
		err := config.LoadFile(configFile, &opts)
		if os.IsNotExist(err) && !cmd.Flags().Changed("config-file") {
			log.WithField("file", configFile).Debug("kvbind: no config file")
		} else if err != nil {
			return opts, fmt.Errorf("kvbind: %s", err)
		}
	}

	if engineName != "" {
		opts.Engine = engineName
	}

	for _, arg := range optionArgs {
		idx := strings.IndexByte(arg, '=')
		if idx < 0 {
			return opts, fmt.Errorf("kvbind: option: expected name=value: %s", arg)
		}
		err := opts.Set(arg[:idx], arg[idx+1:])
		if err != nil {
			return opts, err
		}
	}

	return opts, opts.Validate()
}

func openDB(cmd *cobra.Command, create bool) (*kv.DB, error) {
	opts, err := makeOptions(cmd, create)
	if err != nil {
		return nil, err
	}

	db, err := kv.Open(opts, dbPath)
	if err != nil {
		log.WithField("db", dbPath).Errorf("kvbind: %s", err)
		return nil, err
	}
	log.WithFields(log.Fields{"db": dbPath, "engine": opts.Engine}).Info("kvbind: opened")
	return db, nil
}

// withDB runs fn with the database open and closes it afterwards.
func withDB(cmd *cobra.Command, create bool, fn func(db *kv.DB) error) error {
	db, err := openDB(cmd, create)
	if err != nil {
		return err
	}

	err = fn(db)
	cerr := db.Close()
	if err == nil {
		err = cerr
	}
	return err
}
