package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const (
	Reset = "\033[0m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
)

// colors per level
var levelColor = map[string]string{
	"DEBUG": Cyan,
	"INFO":  Blue,
	"WARN":  Yellow,
	"ERROR": Red,
}

// colors per component
var componentColor = map[string]string{
	"Api":     Cyan,
	"Fetcher": Blue,
	"Meteo":   Magenta,
	"Store":   Green,
	"Archive": Yellow,
	"Janitor": Magenta,
	"Mock":    Cyan,
	"HTTP":    Blue,
	"Config":  Magenta,
	"App":     Green,
}

// color mode only for local/dev runs
func useColor() bool {
	env := os.Getenv("APP_ENV")
	return env == "local" || env == "dev"
}

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

var minLevel = levelRank["INFO"]

// SetLevel sets the minimum level that gets logged. Unknown names keep the
// current level.
func SetLevel(name string) {
	if r, ok := levelRank[strings.ToUpper(name)]; ok {
		minLevel = r
	}
}

// --- Public API ---

func Debug(comp, msg string, args ...any) {
	logGeneric("DEBUG", comp, msg, args...)
}

func Info(comp, msg string, args ...any) {
	logGeneric("INFO", comp, msg, args...)
}

func Warn(comp, msg string, args ...any) {
	logGeneric("WARN", comp, msg, args...)
}

func Error(comp, msg string, args ...any) {
	logGeneric("ERROR", comp, msg, args...)
}

// --- Core ---

func logGeneric(level, comp, msg string, args ...any) {
	if levelRank[level] < minLevel {
		return
	}
	full := fmt.Sprintf(msg, args...)

	if useColor() {
		lc := levelColor[level]
		cc := componentColor[comp]
		log.Printf("%s[%s]%s %s[%s]%s %s",
			lc, level, Reset,
			cc, comp, Reset,
			full,
		)
	} else {
		log.Printf("[%s] [%s] %s", level, comp, full)
	}
}

// L logs with a task id prefix so lines from one task can be correlated.
func L(id, comp, msg string, args ...any) {
	prefix := fmt.Sprintf("[%s][%s][%s] ",
		time.Now().Format(time.RFC3339),
		comp,
		id,
	)
	log.Printf(prefix+msg, args...)
}

// G logs without a task id (global startup lines).
func G(comp, msg string, args ...any) {
	prefix := fmt.Sprintf("[%s][%s] ",
		time.Now().Format(time.RFC3339),
		comp,
	)
	log.Printf(prefix+msg, args...)
}
