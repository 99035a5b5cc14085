package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// LoggerTestSuite tests the log package
type LoggerTestSuite struct {
	suite.Suite
	originalLogger zerolog.Logger
	originalLevel  zerolog.Level
	testOutput     *bytes.Buffer
}

// SetupTest runs before each test
func (s *LoggerTestSuite) SetupTest() {
	s.originalLogger = Logger
	s.originalLevel = level

	s.testOutput = &bytes.Buffer{}
	SetOutput(zerolog.SyncWriter(s.testOutput))
}

// TearDownTest runs after each test
func (s *LoggerTestSuite) TearDownTest() {
	level = s.originalLevel
	Logger = s.originalLogger
}

// lines decodes every JSON line written so far
func (s *LoggerTestSuite) lines() []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s.testOutput.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		s.Require().NoError(json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

// TestInfoLog tests the Info logging function
func (s *LoggerTestSuite) TestInfoLog() {
	Info().Msg("test info message")

	entries := s.lines()
	s.Require().Len(entries, 1)
	s.Equal("info", entries[0]["level"])
	s.Equal("test info message", entries[0]["message"])
	s.Contains(entries[0], "time")
}

// TestWarnAndErrorLog tests the Warn and Error logging functions
func (s *LoggerTestSuite) TestWarnAndErrorLog() {
	Warn().Msg("test warning message")
	Error().Str("cluster", "gpu").Msg("test error message")

	entries := s.lines()
	s.Require().Len(entries, 2)
	s.Equal("warn", entries[0]["level"])
	s.Equal("error", entries[1]["level"])
	s.Equal("gpu", entries[1]["cluster"])
}

// TestDebugHiddenByDefault tests that debug output needs debug mode
func (s *LoggerTestSuite) TestDebugHiddenByDefault() {
	SetLevel(zerolog.InfoLevel)
	Debug().Msg("hidden debug message")
	s.NotContains(s.testOutput.String(), "hidden debug message")

	SetDebugMode()
	Debug().Msg("visible debug message")
	s.Contains(s.testOutput.String(), "visible debug message")
	s.Equal(zerolog.DebugLevel, Logger.GetLevel())
}

// TestSetOutputKeepsLevel tests that swapping writers keeps the configured level
func (s *LoggerTestSuite) TestSetOutputKeepsLevel() {
	SetLevel(zerolog.WarnLevel)

	buf := &bytes.Buffer{}
	SetOutput(buf)
	Info().Msg("dropped")
	Warn().Msg("kept")

	s.NotContains(buf.String(), "dropped")
	s.Contains(buf.String(), "kept")
}

// TestConcurrentLogging tests that logging from many goroutines is safe
func (s *LoggerTestSuite) TestConcurrentLogging() {
	const workers = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			Info().Int("worker", id).Msg("concurrent log message")
		}(i)
	}
	wg.Wait()

	s.Len(s.lines(), workers)
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
