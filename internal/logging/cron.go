package logging

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// CronLogger routes the cron runtime's own logging through zerolog
type CronLogger struct {
	Log zerolog.Logger
}

var _ cron.Logger = CronLogger{}

func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	e := l.Log.Debug()
	addPairs(e, keysAndValues)
	e.Msg(msg)
}

func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	e := l.Log.Error().Err(err)
	addPairs(e, keysAndValues)
	e.Msg(msg)
}

func addPairs(e *zerolog.Event, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		e.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
}
