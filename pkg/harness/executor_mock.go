package harness

import (
	"context"
)

// MockExecutor is a mock implementation of Executor and Installer for testing
type MockExecutor struct {
	MockStdout []byte
	MockStderr []byte
	MockError  error
	InstallErr error
	Scripts    []string
	Installed  [][]string
}

func (m *MockExecutor) Run(ctx context.Context, script string) ([]byte, []byte, error) {
	m.Scripts = append(m.Scripts, script)
	return m.MockStdout, m.MockStderr, m.MockError
}

func (m *MockExecutor) Install(ctx context.Context, packages []string) error {
	m.Installed = append(m.Installed, packages)
	return m.InstallErr
}
