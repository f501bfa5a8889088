package main

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestRootCommand_InvalidConfig(t *testing.T) {
	g := NewWithT(t)

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--producers=0", "--log-level=error"})

	err := cmd.Execute()

	g.Expect(err).To(MatchError(ContainSubstring("invalid configuration")))
}

func TestRootCommand_SmallRun(t *testing.T) {
	g := NewWithT(t)

	cmd := newRootCommand()
	cmd.SetArgs([]string{
		"--tasks=50",
		"--failing-tasks=0",
		"--max-workers=4",
		"--log-level=error",
		"--timeout=10s",
	})

	g.Expect(cmd.Execute()).To(Succeed())
}
