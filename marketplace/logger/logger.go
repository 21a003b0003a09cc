package logger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeAPI       LogType = "API"
	TypeDB        LogType = "DB"
	TypeAuction   LogType = "AUC"
	TypeSweeper   LogType = "SWP"
	TypeReconcile LogType = "REC"
	TypeSystem    LogType = "SYS"
	TypeError     LogType = "ERR"
)

type CustomHandler struct {
	prefix    string
	opts      *slog.HandlerOptions
	startTime time.Time
	attrs     []slog.Attr
	groups    []string
}

func NewHandler(prefix string, level slog.Level) *CustomHandler {
	return &CustomHandler{
		prefix:    prefix,
		opts:      &slog.HandlerOptions{Level: level},
		startTime: time.Now(),
		attrs:     make([]slog.Attr, 0),
		groups:    make([]string, 0),
	}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CustomHandler{
		prefix:    h.prefix,
		opts:      h.opts,
		startTime: h.startTime,
		attrs:     append(h.attrs, attrs...),
		groups:    h.groups,
	}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	return &CustomHandler{
		prefix:    h.prefix,
		opts:      h.opts,
		startTime: h.startTime,
		attrs:     h.attrs,
		groups:    append(h.groups, name),
	}
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	timestamp := time.Now().Format("15:04:05")

	var levelColor, levelText string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = colorPurple
		levelText = "DEBUG"
	case slog.LevelInfo:
		levelColor = colorGreen
		levelText = "INFO"
	case slog.LevelWarn:
		levelColor = colorYellow
		levelText = "WARN"
	case slog.LevelError:
		levelColor = colorRed
		levelText = "ERROR"
	}

	logType := getLogType(&r)
	auctionCode := getAuctionCode(&r)
	userID := getUserID(&r)
	errorDetails := getErrorDetails(&r)
	errorLocation := getErrorLocation(&r)

	message := r.Message
	if r.Level == slog.LevelError {
		if errorLocation != "" {
			message = fmt.Sprintf("%s (%s)", message, errorLocation)
		}
		if errorDetails != "" {
			message = fmt.Sprintf("%s: %s", message, errorDetails)
		}
	}

	if auctionCode != "" {
		message = fmt.Sprintf("%s [auction %s]", message, auctionCode)
	}
	if userID != "" {
		message = fmt.Sprintf("%s [user %s]", message, userID)
	}

	var attrsStr string
	echo := func(a slog.Attr) {
		if isInternalAttr(a.Key) {
			return
		}
		if a.Key == "error" && r.Level == slog.LevelError {
			return
		}
		attrsStr += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		echo(a)
		return true
	})
	for _, attr := range h.attrs {
		echo(attr)
	}

	fmt.Printf("%s[%s] [%s] [%s%s%s] [%s] %s%s%s\n",
		colorWhite,
		h.prefix,
		timestamp,
		levelColor,
		levelText,
		colorWhite,
		logType,
		message,
		attrsStr,
		colorReset,
	)

	return nil
}

func getLogType(r *slog.Record) LogType {
	var logType LogType = TypeSystem
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "type" {
			switch a.Value.String() {
			case "api":
				logType = TypeAPI
			case "db":
				logType = TypeDB
			case "auction":
				logType = TypeAuction
			case "sweeper":
				logType = TypeSweeper
			case "reconcile":
				logType = TypeReconcile
			case "error":
				logType = TypeError
			}
			return false
		}
		return true
	})
	return logType
}

func getSourceLocation() (string, int) {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "", 0
	}
	return filepath.Base(file), line
}

func isInternalAttr(key string) bool {
	internal := []string{"type", "auction_code", "user_id", "error_location"}
	for _, k := range internal {
		if k == key {
			return true
		}
	}
	return false
}

func getAuctionCode(r *slog.Record) string {
	var code string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "auction_code" {
			code = a.Value.String()
			return false
		}
		return true
	})
	return code
}

func getUserID(r *slog.Record) string {
	var id string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "user_id" {
			id = a.Value.String()
			return false
		}
		return true
	})
	return id
}

func getErrorDetails(r *slog.Record) string {
	var details string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "error" {
			details = fmt.Sprintf("%v", a.Value)
			return false
		}
		return true
	})
	return details
}

func getErrorLocation(r *slog.Record) string {
	var location string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "error_location" {
			location = a.Value.String()
			return false
		}
		return true
	})
	if location == "" && r.Level == slog.LevelError {
		if file, line := getSourceLocation(); file != "" {
			location = fmt.Sprintf("%s:%d", file, line)
		}
	}
	return location
}
