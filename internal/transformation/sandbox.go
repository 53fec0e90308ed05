package transformation

import (
	"fmt"
	"io"

	"github.com/flosch/pongo2/v6"
)

// sandboxedTags read other templates or files and are rejected at compile
// time.
var sandboxedTags = []string{"include", "ssi", "import", "extends"}

// Header and body values are not HTML. pongo2 only exposes autoescaping as
// a process-wide switch, so every template is wrapped in an autoescape-off
// block instead.
const (
	autoescapeOff = "{% autoescape off %}"
	autoescapeEnd = "{% endautoescape %}"
)

// noLoader refuses every path.
type noLoader struct{}

func (noLoader) Abs(_, name string) string {
	return name
}

func (noLoader) Get(path string) (io.Reader, error) {
	return nil, fmt.Errorf("template loading is disabled: %q", path)
}

// newTemplateSet creates a template set that cannot reach the filesystem.
func newTemplateSet(name string) *pongo2.TemplateSet {
	set := pongo2.NewSet(name, noLoader{})
	for _, tag := range sandboxedTags {
		if err := set.BanTag(tag); err != nil {
			panic(fmt.Sprintf("transformation: ban tag %q: %v", tag, err))
		}
	}
	return set
}

// compile parses src in the library's template set.
func (l *Library) compile(src string) (*pongo2.Template, error) {
	l.setMu.Lock()
	defer l.setMu.Unlock()
	return l.set.FromString(autoescapeOff + src + autoescapeEnd)
}

// execute renders tpl, turning a panic raised by a library function or the
// engine into an error.
func execute(tpl *pongo2.Template, ctx pongo2.Context) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during render: %v", p)
		}
	}()
	return tpl.Execute(ctx)
}
