package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// PostgresDSNEnv names the variable holding the DSN of a disposable database
// for integration tests.
const PostgresDSNEnv = "LAKEFLOW_TEST_POSTGRES_DSN"

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// PostgresDSN returns the integration database DSN or skips the test.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	IntegrationTest(t)
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("Skipping integration test: %s not set", PostgresDSNEnv)
	}
	return dsn
}

// IntegrationTestSuite provides base functionality for integration tests
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	dsn       string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.dsn = PostgresDSN(s.T())
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	if s.cancel != nil {
		s.cancel()
	}
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// DSN returns the integration database DSN
func (s *IntegrationTestSuite) DSN() string {
	return s.dsn
}
