package cli

import (
	"github.com/robfig/cron/v3"

	appLog "availgrid/internal/log"
)

// cronLogger sends scheduler messages to the application logger. Routine
// scheduling chatter goes to debug.
type cronLogger struct{}

var _ cron.Logger = cronLogger{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
