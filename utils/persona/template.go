package persona

import (
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

// Values are the inputs a persona template is rendered against
type Values struct {
	Input        string
	Context      string
	DocumentName string
	Variables    map[string]string
}

// inputAliases name the document payload in older templates
var inputAliases = map[string]bool{
	"input":            true,
	"document_content": true,
	"content":          true,
	"input_text":       true,
}

func (v Values) lookup(name string) (string, bool) {
	switch {
	case inputAliases[name]:
		return v.Input, true
	case name == "context":
		return v.Context, true
	case name == "document_name":
		return v.DocumentName, true
	}
	val, ok := v.Variables[name]
	return val, ok
}

// Placeholders returns the placeholder names used by tpl, in order of appearance
func Placeholders(tpl string) ([]string, error) {
	t, err := fasttemplate.NewTemplate(tpl, "{", "}")
	if err != nil {
		return nil, err
	}
	var names []string
	_, err = t.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		names = append(names, strings.TrimSpace(tag))
		return 0, nil
	})
	return names, err
}

// Render substitutes every {placeholder} in tpl. An unknown placeholder is an error.
func Render(tpl string, v Values) (string, error) {
	t, err := fasttemplate.NewTemplate(tpl, "{", "}")
	if err != nil {
		return "", err
	}
	return t.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		val, ok := v.lookup(strings.TrimSpace(tag))
		if !ok {
			return 0, fmt.Errorf("unknown placeholder {%s}", strings.TrimSpace(tag))
		}
		return io.WriteString(w, val)
	})
}

// Check dry-renders tpl so that bad templates surface before any model call
func Check(tpl string, variables map[string]string) error {
	_, err := Render(tpl, Values{Variables: variables})
	return err
}
