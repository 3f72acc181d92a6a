package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level controls which records are emitted.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	mu     sync.Mutex
	level  = INFO
	output io.Writer = os.Stderr
)

// SetLevel sets the minimum level that will be logged.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetOutput redirects log output; used to tee into a file.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "?"
	}
}

func emit(l Level, component, msg string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(l.String())
	b.WriteString("] [")
	b.WriteString(component)
	b.WriteString("] ")
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteString("\n")
	io.WriteString(output, b.String())
}

func DebugC(component, msg string)                        { emit(DEBUG, component, msg, nil) }
func DebugCF(component, msg string, fields map[string]any) { emit(DEBUG, component, msg, fields) }
func InfoC(component, msg string)                         { emit(INFO, component, msg, nil) }
func InfoCF(component, msg string, fields map[string]any)  { emit(INFO, component, msg, fields) }
func WarnC(component, msg string)                         { emit(WARN, component, msg, nil) }
func WarnCF(component, msg string, fields map[string]any)  { emit(WARN, component, msg, fields) }
func ErrorC(component, msg string)                        { emit(ERROR, component, msg, nil) }
func ErrorCF(component, msg string, fields map[string]any) { emit(ERROR, component, msg, fields) }
