// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	usr, err := user.Current()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	for input, want := range map[string]string{
		"":                        "",
		"graphs/a.yaml":           "graphs/a.yaml",
		"/tmp/~a.yaml":            "/tmp/~a.yaml",
		"~":                       usr.HomeDir,
		"~/graphs/a.yaml":         filepath.Join(usr.HomeDir, "graphs/a.yaml"),
		"~" + usr.Username:        usr.HomeDir,
		"~" + usr.Username + "/x": filepath.Join(usr.HomeDir, "x"),
	} {
		got, err := ExpandHome(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err = ExpandHome("~no-such-user-somas/a.yaml")
	require.Error(t, err)
}
