package log

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format expands %time, %level, %field, %msg, %caller, %func and %goroutine in the pattern.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	if strings.Contains(output, "%caller") {
		output = strings.Replace(output, "%caller", getCaller(entry), 1)
	}
	if strings.Contains(output, "%func") {
		output = strings.Replace(output, "%func", getFunc(entry), 1)
	}
	if strings.Contains(output, "%goroutine") {
		output = strings.Replace(output, "%goroutine", getGoroutineID(), 1)
	}
	return []byte(output), nil
}

// package/file.go:line
func getCaller(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	file := baseName(entry.Caller.File)
	pkg := ""
	if fn := entry.Caller.Function; fn != "" {
		if i := strings.LastIndex(fn, "/"); i != -1 {
			fn = fn[i+1:]
		}
		if i := strings.Index(fn, "."); i != -1 {
			pkg = fn[:i]
		}
	}
	return fmt.Sprintf("%s/%s:%d", pkg, file, entry.Caller.Line)
}

func getFunc(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	name := entry.Caller.Function
	if i := strings.LastIndex(name, "."); i != -1 && i+1 < len(name) {
		return name[i+1:]
	}
	return name
}

func getGoroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	stack := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if id := strings.Fields(stack); len(id) > 0 {
		return id[0]
	}
	return "unknown"
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i != -1 && i+1 < len(path) {
		return path[i+1:]
	}
	return path
}

func buildFields(entry *logrus.Entry) string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		val, ok := entry.Data[k].(string)
		if !ok {
			val = fmt.Sprint(entry.Data[k])
		}
		fields = append(fields, k+"="+val)
	}
	return strings.Join(fields, ",")
}
