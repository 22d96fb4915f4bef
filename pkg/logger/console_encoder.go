package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorMagenta = "\x1b[35m"
	colorYellow  = "\x1b[33m"
	colorRed     = "\x1b[31m"
	colorReset   = "\x1b[0m"
)

var bufferPool = buffer.NewPool()

// consoleEncoder renders one line per entry: timestamp, bracketed level
// (colored when enabled), caller, message, then any remaining fields as
// space-separated key=value pairs.
type consoleEncoder struct {
	zapcore.EncoderConfig
	color           bool
	timestampFormat string
}

func newConsoleEncoder(cfg zapcore.EncoderConfig, color bool) zapcore.Encoder {
	return &consoleEncoder{EncoderConfig: cfg, color: color, timestampFormat: time.RFC3339}
}

func (enc *consoleEncoder) Clone() zapcore.Encoder {
	return &consoleEncoder{EncoderConfig: enc.EncoderConfig, color: enc.color, timestampFormat: enc.timestampFormat}
}

func (enc *consoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := bufferPool.Get()

	if enc.TimeKey != "" {
		line.AppendString(ent.Time.Format(enc.timestampFormat))
		line.AppendString(" ")
	}

	levelStr := strings.ToUpper(ent.Level.String())
	var remaining []zapcore.Field
	for _, f := range fields {
		if f.Key == "customlevel" && f.Type == zapcore.StringType {
			levelStr = strings.ToUpper(f.String)
			continue
		}
		remaining = append(remaining, f)
	}
	bracketed := fmt.Sprintf("[%s]", levelStr)
	if enc.color {
		bracketed = colorize(levelStr, bracketed)
	}
	line.AppendString(bracketed)
	line.AppendString(" ")

	if ent.Caller.Defined && enc.CallerKey != "" {
		line.AppendString(ent.Caller.TrimmedPath())
		line.AppendString(" ")
	}

	line.AppendString(ent.Message)

	for _, f := range remaining {
		line.AppendString(" ")
		line.AppendString(f.Key)
		line.AppendString("=")
		appendFieldValue(line, f)
	}

	line.AppendString(enc.LineEnding)
	return line, nil
}

func appendFieldValue(line *buffer.Buffer, f zapcore.Field) {
	switch f.Type {
	case zapcore.StringType:
		if strings.ContainsAny(f.String, " \t\"") || f.String == "" {
			fmt.Fprintf(line, "%q", f.String)
		} else {
			line.AppendString(f.String)
		}
	case zapcore.ErrorType:
		if f.Interface != nil {
			fmt.Fprintf(line, "%q", f.Interface.(error).Error())
		} else {
			line.AppendString("nil")
		}
	case zapcore.BoolType:
		line.AppendBool(f.Integer == 1)
	case zapcore.Int8Type, zapcore.Int16Type, zapcore.Int32Type, zapcore.Int64Type:
		line.AppendInt(f.Integer)
	case zapcore.Uint8Type, zapcore.Uint16Type, zapcore.Uint32Type, zapcore.Uint64Type, zapcore.UintptrType:
		line.AppendUint(uint64(f.Integer))
	case zapcore.DurationType:
		line.AppendString(time.Duration(f.Integer).String())
	default:
		fmt.Fprintf(line, "%v", f.Interface)
	}
}

func colorize(level, s string) string {
	switch level {
	case "DEBUG":
		return colorMagenta + s + colorReset
	case "WARN":
		return colorYellow + s + colorReset
	case "ERROR":
		return colorRed + s + colorReset
	default:
		return s
	}
}
