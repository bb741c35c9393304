package cmdutil

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type loggerConfig struct {
	level   string
	logFile string
}

var loggerConfigInst = loggerConfig{
	level: zerolog.InfoLevel.String(),
}

func RegisterLoggerFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&loggerConfigInst.level,
		"level",
		loggerConfigInst.level,
		"what level to log at - maps to zerolog.Level",
	)
	cmd.PersistentFlags().StringVar(
		&loggerConfigInst.logFile,
		"log-file",
		"",
		"if set, append logs to this file as JSON lines instead of the console",
	)
}

func Logger() (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(loggerConfigInst.level)
	if err != nil {
		return zerolog.Logger{}, errors.Wrap(err, "error parsing log level")
	}
	if loggerConfigInst.logFile != "" {
		f, err := os.OpenFile(loggerConfigInst.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Logger{}, errors.Wrapf(err, "error opening log file %s", loggerConfigInst.logFile)
		}
		return zerolog.New(f).With().Timestamp().Logger().Level(lvl), nil
	}
	return zerolog.New(zerolog.NewConsoleWriter()).Level(lvl), nil
}
