// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/nfsmeta/distfs/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const (
	textTraceString   = "^time=\"[0-9/:. ]{26}\" severity=TRACE message=\"TestLogs: www.traceExample.com\""
	textDebugString   = "^time=\"[0-9/:. ]{26}\" severity=DEBUG message=\"TestLogs: www.debugExample.com\""
	textInfoString    = "^time=\"[0-9/:. ]{26}\" severity=INFO message=\"TestLogs: www.infoExample.com\""
	textWarningString = "^time=\"[0-9/:. ]{26}\" severity=WARNING message=\"TestLogs: www.warningExample.com\""
	textErrorString   = "^time=\"[0-9/:. ]{26}\" severity=ERROR message=\"TestLogs: www.errorExample.com\""

	jsonTraceString   = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"TRACE\",\"message\":\"TestLogs: www.traceExample.com\"}"
	jsonDebugString   = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"DEBUG\",\"message\":\"TestLogs: www.debugExample.com\"}"
	jsonInfoString    = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"INFO\",\"message\":\"TestLogs: www.infoExample.com\"}"
	jsonWarningString = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"WARNING\",\"message\":\"TestLogs: www.warningExample.com\"}"
	jsonErrorString   = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"ERROR\",\"message\":\"TestLogs: www.errorExample.com\"}"
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirectLogsToGivenBuffer(buf *bytes.Buffer, level string) {
	programLevel := new(slog.LevelVar)
	defaultLogger = slog.New(
		defaultLoggerFactory.createJsonOrTextHandler(buf, programLevel, "TestLogs: "),
	)
	setLoggingLevel(level, programLevel)
}

func fetchLogOutputForSpecifiedSeverityLevel(level string, functions []func()) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, level)

	var output []string
	for _, f := range functions {
		f()
		output = append(output, buf.String())
		buf.Reset()
	}
	return output
}

func getTestLoggingFunctions() []func() {
	return []func(){
		func() { Tracef("www.traceExample.com") },
		func() { Debugf("www.debugExample.com") },
		func() { Infof("www.infoExample.com") },
		func() { Warnf("www.warningExample.com") },
		func() { Errorf("www.errorExample.com") },
	}
}

func validateOutput(t *testing.T, expected []string, output []string) {
	for i := range output {
		if expected[i] == "" {
			assert.Equal(t, expected[i], output[i])
		} else {
			expectedRegexp := regexp.MustCompile(expected[i])
			assert.True(t, expectedRegexp.MatchString(output[i]))
		}
	}
}

func validateLogOutputAtSpecifiedFormatAndSeverity(t *testing.T, format string, level string, expectedOutput []string) {
	defaultLoggerFactory.format = format
	output := fetchLogOutputForSpecifiedSeverityLevel(level, getTestLoggingFunctions())
	validateOutput(t, expectedOutput, output)
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelOFF() {
	expected := []string{"", "", "", "", ""}
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", OFF, expected)
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelERROR() {
	expected := []string{"", "", "", "", textErrorString}
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", ERROR, expected)
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelWARNING() {
	expected := []string{"", "", "", textWarningString, textErrorString}
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", WARNING, expected)
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelINFO() {
	expected := []string{"", "", textInfoString, textWarningString, textErrorString}
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", INFO, expected)
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelDEBUG() {
	expected := []string{"", textDebugString, textInfoString, textWarningString, textErrorString}
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", DEBUG, expected)
}

func (t *LoggerTest) TestTextFormatLogs_LogLevelTRACE() {
	expected := []string{textTraceString, textDebugString, textInfoString, textWarningString, textErrorString}
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "text", TRACE, expected)
}

func (t *LoggerTest) TestJSONFormatLogs_LogLevelOFF() {
	expected := []string{"", "", "", "", ""}
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "json", OFF, expected)
}

func (t *LoggerTest) TestJSONFormatLogs_LogLevelERROR() {
	expected := []string{"", "", "", "", jsonErrorString}
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "json", ERROR, expected)
}

func (t *LoggerTest) TestJSONFormatLogs_LogLevelTRACE() {
	expected := []string{jsonTraceString, jsonDebugString, jsonInfoString, jsonWarningString, jsonErrorString}
	validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), "json", TRACE, expected)
}

func (t *LoggerTest) TestSetLoggingLevel() {
	testData := []struct {
		inputLevel           string
		expectedProgramLevel slog.Level
	}{
		{TRACE, LevelTrace},
		{DEBUG, LevelDebug},
		{WARNING, LevelWarn},
		{ERROR, LevelError},
		{OFF, LevelOff},
	}

	for _, test := range testData {
		programLevel := new(slog.LevelVar)
		setLoggingLevel(test.inputLevel, programLevel)
		assert.Equal(t.T(), test.expectedProgramLevel, programLevel.Level())
	}
}

func (t *LoggerTest) TestInitLogFile() {
	dir := t.T().TempDir()
	filePath := filepath.Join(dir, "log.txt")
	logConfig := cfg.LoggingConfig{
		FilePath: cfg.ResolvedPath(filePath),
		Severity: DEBUG,
		Format:   "text",
		LogRotateConfig: cfg.LogRotateConfig{
			MaxFileSizeMB:   100,
			BackupFileCount: 2,
			Compress:        true,
		},
	}

	err := InitLogFile(logConfig)

	assert.NoError(t.T(), err)
	assert.Equal(t.T(), filePath, defaultLoggerFactory.file.Name())
	assert.Equal(t.T(), "text", defaultLoggerFactory.format)
	assert.Equal(t.T(), DEBUG, defaultLoggerFactory.level)
	assert.Equal(t.T(), 100, defaultLoggerFactory.logRotateConfig.MaxFileSizeMB)
	assert.Equal(t.T(), 2, defaultLoggerFactory.logRotateConfig.BackupFileCount)
	assert.True(t.T(), defaultLoggerFactory.logRotateConfig.Compress)
	defaultLoggerFactory.file.Close()
}

func (t *LoggerTest) TestSetLogFormatToText() {
	defaultLoggerFactory = &loggerFactory{
		level:  INFO,
		writer: os.Stderr,
	}

	testData := []struct {
		format         string
		expectedOutput string
	}{
		{"text", textInfoString},
		{"json", jsonInfoString},
		{"", jsonInfoString},
	}

	for _, test := range testData {
		SetLogFormat(test.format)

		assert.NotNil(t.T(), defaultLoggerFactory)
		assert.NotNil(t.T(), defaultLogger)

		var buf bytes.Buffer
		redirectLogsToGivenBuffer(&buf, defaultLoggerFactory.level)
		Infof("www.infoExample.com")
		output := buf.String()
		expectedRegexp := regexp.MustCompile(test.expectedOutput)
		assert.True(t.T(), expectedRegexp.MatchString(output))
	}
}
