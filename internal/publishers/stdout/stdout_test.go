package stdout

import (
	"bytes"
	"strings"
	"testing"
)

func TestPublish(t *testing.T) {
	var buf bytes.Buffer
	p := &Publisher{w: &buf}
	if err := p.Publish("script", map[string]interface{}{"banner": true}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(buf.String(), "script") || !strings.Contains(buf.String(), "GENERATED PAC SCRIPT") {
		t.Errorf("output = %q", buf.String())
	}
}
