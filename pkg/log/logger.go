package log

import "time"

// Logger is the structured logger every ebridge component writes to.
// Entries are a message plus typed fields; child loggers from With carry
// connection-scoped fields such as conn_id and remote.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that adds fields to each entry it writes.
	With(fields ...Field) Logger
}

// Field is one key/value attached to an entry. Adapters map the dynamic type
// of Value onto their native field encoders.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err attaches err under the "error" key.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any attaches a value the adapter encodes by reflection.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
