package main

import (
	"testing"

	"github.com/farwydi/structapi"
	"github.com/farwydi/structapi/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeLine(t *testing.T) {
	s := structapi.MustCompile("!I6s")
	assert.Equal(t, "(anonymous)  format=!1I6s  size=10 B (10 bytes)", sizeLine(s))
}

func TestLayoutSizeLines(t *testing.T) {
	set, err := layout.Parse([]byte(`
[layout.a]
fields = [ { name = "x", type = "uint16" } ]

[layout.b]
fields = [ { name = "y", type = "float64" } ]
`))
	require.NoError(t, err)

	lines, err := layoutSizeLines(set)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "a  format=!1H  size=2 B (2 bytes)", lines[0])
	assert.Equal(t, "b  format=!1d  size=8 B (8 bytes)", lines[1])
}
