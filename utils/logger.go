package utils

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
)

var (
	infoLogger  = log.New(os.Stdout, "", log.Ldate|log.Ltime)
	errorLogger = log.New(os.Stderr, "", log.Ldate|log.Ltime)

	infoTag  = color.New(color.FgCyan).SprintFunc()
	warnTag  = color.New(color.FgYellow).SprintFunc()
	errorTag = color.New(color.FgRed, color.Bold).SprintFunc()
	okTag    = color.New(color.FgGreen).SprintFunc()
)

// LogInfo prints a general message.
func LogInfo(format string, v ...interface{}) {
	infoLogger.Printf("%s %s", infoTag("[INFO]"), fmt.Sprintf(format, v...))
}

// LogSuccess prints a completed-operation message.
func LogSuccess(format string, v ...interface{}) {
	infoLogger.Printf("%s %s", okTag("[ OK ]"), fmt.Sprintf(format, v...))
}

// LogWarn prints something worth a look that did not fail the request.
func LogWarn(format string, v ...interface{}) {
	infoLogger.Printf("%s %s", warnTag("[WARN]"), fmt.Sprintf(format, v...))
}

// LogError prints a failure to stderr.
func LogError(format string, v ...interface{}) {
	errorLogger.Printf("%s %s", errorTag("[ERROR]"), fmt.Sprintf(format, v...))
}
