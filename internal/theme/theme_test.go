package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateStyle(t *testing.T) {
	assert.Equal(t, ColorGreen, StateStyle("mailbox_selected").GetForeground())
	assert.Equal(t, ColorYellow, StateStyle("running").GetForeground())
	assert.Equal(t, ColorRed, StateStyle("connection_failed").GetForeground())
	assert.Equal(t, ColorGray, StateStyle("disconnected").GetForeground())
}

func TestTypeLabelStyle(t *testing.T) {
	assert.Equal(t, ColorBlue, TypeLabelStyle("local_files").GetForeground())
	assert.Equal(t, ColorGreen, TypeLabelStyle("imap").GetForeground())
	assert.Equal(t, ColorMagenta, TypeLabelStyle("other").GetForeground())
}
