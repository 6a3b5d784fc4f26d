package stdout

import (
	"fmt"
	"io"
	"os"

	"switchpac/internal/publishers"
)

type Publisher struct {
	w io.Writer
}

func (p *Publisher) Publish(script string, config map[string]interface{}) error {
	w := p.w
	if w == nil {
		w = os.Stdout
	}
	if publishers.Bool(config, "banner") {
		fmt.Fprintln(w, "/* ========== GENERATED PAC SCRIPT ========== */")
	}
	_, err := io.WriteString(w, script)
	return err
}

func init() {
	publishers.Register("stdout", func() publishers.Publisher { return &Publisher{} })
}
