package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Options selects the output format and level.
type Options struct {
	// Mode "prod" or "production" writes JSON; anything else writes console lines.
	Mode string
	// Level is one of debug, info, warn, error. Empty picks debug for console and info for JSON.
	Level string
	// HashSalt is mixed into hashed player identifiers.
	HashSalt string
}

// Logger writes key/value pairs. Credentials are redacted and player
// identifiers are hashed before they reach the sink.
type Logger struct {
	sugar *zap.SugaredLogger
	salt  string
}

func New(opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(opts.Mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if opts.Level != "" {
		level, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = level
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: z.Sugar(), salt: opts.HashSalt}, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() { _ = l.sugar.Sync() }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, l.scrub(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, l.scrub(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, l.scrub(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, l.scrub(kv)...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(l.scrub(kv)...), salt: l.salt}
}

var (
	redactedKeys = []string{"token", "authorization", "secret", "password"}
	hashedKeys   = []string{"user_id", "device_id"}
)

// scrub rewrites values by key. A trailing key without a value is passed through.
func (l *Logger) scrub(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key := strings.ToLower(fmt.Sprint(out[i]))
		switch {
		case matches(key, redactedKeys):
			out[i+1] = "[REDACTED]"
		case matches(key, hashedKeys):
			out[i+1] = l.hash(out[i+1])
		}
	}
	return out
}

func matches(key string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

// hash keeps identifiers correlatable across lines without logging them.
// Anonymous players have an empty user id, which stays empty.
func (l *Logger) hash(v interface{}) string {
	raw := fmt.Sprint(v)
	if v == nil || raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(l.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:6])
}
