package main

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
)

var funcMap = template.FuncMap{
	"quote":     func(s string) string { return fmt.Sprintf("%q", s) },
	"kindConst": kindConst,
}

const fileTmpl = `// Code generated by ggipc-opgen from {{.Source}}. DO NOT EDIT.

package {{.Package}}

import "github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
{{range .Ops}}
// {{.GoName}} operation.
var Op{{.GoName}} = Operation{
	Name: {{quote .Name}},
	RequestType: {{quote (print .Name "Request")}},
{{- if .Event}}
	EventType: {{quote .Event}},
{{- end}}
	Errors: ggerr.CodeMap{
{{- if .Errors}}
		Codes: map[string]ggerr.Kind{
{{- range .Errors}}
			{{quote .Code}}: {{kindConst .Kind}},
{{- end}}
		},
{{- end}}
		Fallback: ggerr.Failure,
	},
}
{{end}}
// Operations lists every known operation in definition order.
var Operations = []Operation{
{{- range .Ops}}
	Op{{.GoName}},
{{- end}}
}
`

var fileTemplate = template.Must(template.New("operations").Funcs(funcMap).Parse(fileTmpl))

type fileData struct {
	Source  string
	Package string
	Ops     []opData
}

type opData struct {
	GoName string
	Name   string
	Event  string
	Errors []ErrorMapping
}

// kindConst returns the ggerr identifier for k, e.g. "ggerr.Noentry".
func kindConst(k ggerr.Kind) string {
	name := strings.ToLower(k.String())
	return "ggerr." + strings.ToUpper(name[:1]) + name[1:]
}

// Generate renders the operation table. The output is not yet gofmt'd.
func Generate(pkg, source string, defs *RawOperations) (string, error) {
	data := fileData{Source: source, Package: pkg}
	for _, op := range defs.Operations {
		errs, err := op.ErrorMappings()
		if err != nil {
			return "", err
		}
		d := opData{
			GoName: op.GoName(),
			Name:   op.Service + "#" + op.Name,
			Errors: errs,
		}
		if op.Event != "" {
			d.Event = op.Service + "#" + op.Event
		}
		data.Ops = append(data.Ops, d)
	}

	var b strings.Builder
	if err := fileTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("template: %w", err)
	}
	return b.String(), nil
}
