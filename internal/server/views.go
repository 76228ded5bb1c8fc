// views.go - Minimal server-rendered pages.
//
// Presentation is deliberately thin: a login form, a landing page, and
// the evidence upload form. Only the error slot on the login view has
// behavioral meaning (bad credentials re-render it with a 401).
package server

import (
	"html/template"
	"net/http"
)

var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Evidence Drop - Login</title></head>
<body>
  <h1>Evidence Drop</h1>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  <form method="post" action="/login">
    <label>Username <input type="text" name="username" autocomplete="username"></label>
    <label>Password <input type="password" name="password" autocomplete="current-password"></label>
    <button type="submit">Sign in</button>
  </form>
</body>
</html>
`))

var homeTmpl = template.Must(template.New("home").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Evidence Drop - Home</title></head>
<body>
  <h1>Welcome, {{.User}}</h1>
  <nav><a href="/evidencia">Upload evidence</a> | <a href="/logout">Log out</a></nav>
</body>
</html>
`))

var evidenceTmpl = template.Must(template.New("evidence").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Evidence Drop - Upload</title></head>
<body>
  <h1>Upload evidence</h1>
  <form method="post" action="/evidencia" enctype="multipart/form-data">
    <input type="file" name="evidence">
    <button type="submit">Upload</button>
  </form>
  <nav><a href="/home">Home</a> | <a href="/logout">Log out</a></nav>
</body>
</html>
`))

func renderLogin(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = loginTmpl.Execute(w, struct{ Error string }{Error: errMsg})
}

func loginPageHandler(w http.ResponseWriter, r *http.Request) {
	renderLogin(w, http.StatusOK, "")
}

func homePageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = homeTmpl.Execute(w, struct{ User string }{User: UsernameFromContext(r.Context())})
}

func evidencePageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = evidenceTmpl.Execute(w, nil)
}
