package autostart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandLine(t *testing.T) {
	assert.Equal(t, `C:\bin\nguctl.exe serve`, commandLine(`C:\bin\nguctl.exe`, ""))
	assert.Equal(t,
		`"C:\Program Files\nguctl\nguctl.exe" serve --config "C:\Users\a b\nguctl.json"`,
		commandLine(`C:\Program Files\nguctl\nguctl.exe`, `C:\Users\a b\nguctl.json`))
}
