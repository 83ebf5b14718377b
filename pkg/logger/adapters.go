package logger

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// QueueLogger routes the task queue server's own logging through l, tagged component=asynq.
func (l *Logger) QueueLogger() asynq.Logger {
	entry := l.base.With().Str("component", "asynq").Logger()
	return queueLogger{entry: &Logger{base: &entry, warnStack: l.warnStack}}
}

type queueLogger struct{ entry *Logger }

func (q queueLogger) Debug(args ...any) { q.entry.Debug(context.Background(), fmt.Sprint(args...)) }
func (q queueLogger) Info(args ...any)  { q.entry.Info(context.Background(), fmt.Sprint(args...)) }
func (q queueLogger) Warn(args ...any)  { q.entry.Warn(context.Background(), fmt.Sprint(args...)) }
func (q queueLogger) Error(args ...any) { q.entry.Error(context.Background(), fmt.Sprint(args...), nil) }

func (q queueLogger) Fatal(args ...any) {
	q.entry.Error(context.Background(), fmt.Sprint(args...), nil)
	os.Exit(1)
}

// PrintfLogger is the hook go-redis accepts in redis.SetLogger.
type PrintfLogger interface {
	Printf(ctx context.Context, format string, v ...any)
}

// RedisLogger logs go-redis pool and reconnect notices at warn.
func (l *Logger) RedisLogger() PrintfLogger {
	entry := l.base.With().Str("component", "redis").Logger()
	return redisPrintf{entry: &entry}
}

type redisPrintf struct{ entry *zerolog.Logger }

func (r redisPrintf) Printf(ctx context.Context, format string, v ...any) {
	r.entry.Warn().Msgf(format, v...)
}
