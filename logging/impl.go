package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans every enabled entry out to its appenders. Subloggers share the appender slice but carry
// their own level.
type impl struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders []Appender
}

// callerSkip steps over entry and the exported level method.
const callerSkip = 2

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// entry builds an entry stamped with the caller of the level method that called it.
func (imp *impl) entry(level Level, msg string) zapcore.Entry {
	e := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
	}
	if imp.inUTC {
		e.Time = e.Time.UTC()
	}
	if pc, file, line, ok := runtime.Caller(callerSkip); ok {
		e.Caller = zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.Caller.Function = fn.Name()
		}
	}
	return e
}

func (imp *impl) write(e zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.appenders {
		if err := appender.Write(e, fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

// fieldsOf pairs up keysAndValues. A trailing key without a value is kept with an error in its place.
func fieldsOf(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.entry(DEBUG, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.entry(DEBUG, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.entry(DEBUG, msg), fieldsOf(keysAndValues))
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.entry(INFO, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.entry(INFO, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.entry(INFO, msg), fieldsOf(keysAndValues))
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.entry(WARN, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.entry(WARN, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.entry(WARN, msg), fieldsOf(keysAndValues))
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.entry(ERROR, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.entry(ERROR, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.entry(ERROR, msg), fieldsOf(keysAndValues))
	}
}

// Fatal logs args as an error, flushes the appenders and exits.
func (imp *impl) Fatal(args ...interface{}) {
	imp.write(imp.entry(ERROR, fmt.Sprint(args...)), nil)
	//nolint:errcheck
	imp.Sync()
	os.Exit(1)
}
