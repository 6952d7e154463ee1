package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		cmd  string
		rest []string
	}{
		{"bare", []string{"sweep"}, "sweep", []string{}},
		{"flags first", []string{"-d", "memory", "-c", "conf.yaml", "migrate"}, "migrate", []string{}},
		{"inline flag", []string{"--config=conf.yaml", "set-password", "a@x.com"}, "set-password", []string{"a@x.com"}},
		{"none", []string{"-d", "memory"}, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, rest := command(tt.args)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.rest, rest)
		})
	}
}
