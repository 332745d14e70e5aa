package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Version(t *testing.T) {
	root := NewRootCmd("1.2.3")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "paneld version 1.2.3\n", out.String())
}

func TestRootCmd_Commands(t *testing.T) {
	root := NewRootCmd("dev")

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"login", "register", "logout", "whoami", "users", "dash", "env", "version"} {
		assert.Contains(t, names, want)
	}

	require.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}
