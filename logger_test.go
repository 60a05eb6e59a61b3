package wavechan

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWriterLogger_FieldsAreSortedAndInherited(t *testing.T) {
	var buf bytes.Buffer

	base := NewWriterLogger(&buf).WithField("z", 1)
	child := base.WithField("a", "x")

	child.Infof("hello %s", "world")
	base.Warnln("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INFO [a=x, z=1]: hello world")
	assert.Contains(t, lines[1], "WARN [z=1]: plain")
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer

	l := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)).WithField("conn_id", "c1")
	l.Debugf("hidden")
	l.Errorf("boom: %d", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"conn_id":"c1"`)
	assert.Contains(t, out, `"message":"boom: 42"`)
	assert.Contains(t, out, `"level":"error"`)
}
