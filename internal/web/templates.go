package web

import (
	"html/template"
)

const docsTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>tsl docs{{if .CurrentDoc}} - {{.CurrentDoc}}{{end}}</title>
</head>
<body>
  <header>tsl {{.CurrentVersion}} <small>({{.BuildTime}})</small></header>
  <nav>
    <ul>
    {{range .DocList}}<li><a href="/docs/view?file={{.}}"{{if eq . $.CurrentDoc}} aria-current="page"{{end}}>{{.}}</a></li>
    {{else}}<li>No documents found</li>
    {{end}}</ul>
  </nav>
  <main id="content-area">{{.DocContent}}</main>
</body>
</html>
`

// parseTemplates parses the page templates compiled into the binary.
func parseTemplates() (*template.Template, error) {
	return template.New("docs.html").Parse(docsTemplate)
}
