// The logger package defines a simple logger with INFO, WARN and ERROR
// prints. A nil *Aggregate is valid and every call on it is a no-op, so
// callers can carry an optional logger without a separate nil check.
package logger

import (
	"io"
	"log"
	"os"
)

type Aggregate struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// New() returns an initialized Logger
func New(out io.Writer) *Aggregate {
	infoLogger := log.New(out, "INFO: ", log.LstdFlags)
	warnLogger := log.New(out, "WARN: ", log.LstdFlags)
	errorLogger := log.New(out, "ERROR: ", log.LstdFlags)

	return &Aggregate{
		infoLogger:  infoLogger,
		warnLogger:  warnLogger,
		errorLogger: errorLogger,
	}
}

// Info() prints an INFO log
func (l *Aggregate) Info(s string, v ...interface{}) {
	if l == nil {
		return
	}
	l.infoLogger.Printf(s, v...)
}

// Warn() prints an WARN log
func (l *Aggregate) Warn(s string, v ...interface{}) {
	if l == nil {
		return
	}
	l.warnLogger.Printf(s, v...)
}

// Error() prints an ERROR log
func (l *Aggregate) Error(s string, v ...interface{}) {
	if l == nil {
		return
	}
	l.errorLogger.Printf(s, v...)
}

// Init() initialise the logger and the file it prints to.
func Init(filePath string) (*Aggregate, *os.File) {
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		panic(err)
	}
	l := New(file)
	return l, file
}
