// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/NVIDIA/rbfuzz/conf"
)

var logFile *os.File = nil

// multiWriter fans each log message out to every registered writer.
type multiWriter struct {
	sync.Mutex
	writers []io.Writer
}

func (mw *multiWriter) addWriter(writer io.Writer) {
	mw.Lock()
	mw.writers = append(mw.writers, writer)
	mw.Unlock()
}

func (mw *multiWriter) Write(p []byte) (n int, err error) {
	mw.Lock()
	defer mw.Unlock()

	for _, writer := range mw.writers {
		n, err = writer.Write(p)
		if nil != err {
			return
		}
	}
	return len(p), nil
}

var output = &multiWriter{}

func addLogTarget(writer io.Writer) {
	output.addWriter(writer)
}

// Up configures logging from the "Logging" section of confMap:
//
//   [Logging]
//   LogFilePath       : /var/log/rbfuzz.log
//   LogToConsole      : true
//   TraceLevelLogging : harness campaign
//
// Every option is optional; without LogFilePath logs go to stderr.
func Up(confMap conf.ConfMap) (err error) {
	log.SetFormatter(&log.TextFormatter{DisableColors: true})

	output = &multiWriter{}

	logFilePath, _ := confMap.FetchOptionValueString("Logging", "LogFilePath")
	if logFilePath != "" {
		logFile, err = os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Errorf("couldn't open log file: %v", err)
			return err
		}
		output.addWriter(logFile)
	}

	logToConsole, err := confMap.FetchOptionValueBool("Logging", "LogToConsole")
	if err != nil {
		logToConsole = (logFilePath == "")
	}
	if logToConsole {
		output.addWriter(os.Stderr)
	}

	log.SetOutput(output)

	// Gating happens in this package, so logrus passes everything through.
	log.SetLevel(log.InfoLevel)

	traceConfSlice, _ := confMap.FetchOptionValueStringSlice("Logging", "TraceLevelLogging")
	setTraceLoggingLevel(traceConfSlice)

	return nil
}

func Down() (err error) {
	log.SetOutput(os.Stderr)
	setTraceLoggingLevel(nil)

	if logFile != nil {
		err = logFile.Close()
		logFile = nil
	}
	return
}
