package dashboard

import (
	"html/template"

	"github.com/paneld-dev/paneld/internal/session"
)

var pages = template.Must(template.New("pages").Parse(`
{{define "header"}}<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Title}} · paneld</title></head>
<body>
{{if .User}}<nav>
<a href="/dashboard">Dashboard</a> · <a href="/dashboard/users">Users</a>
<span class="user">{{.User.DisplayName}}</span>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>
</nav>{{end}}
<main>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{end}}

{{define "footer"}}</main>
</body>
</html>
{{end}}

{{define "login.html"}}{{template "header" .}}
<h1>Sign in</h1>
<form method="post" action="/login">
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
<p><a href="/register">Create an account</a></p>
{{template "footer" .}}{{end}}

{{define "register.html"}}{{template "header" .}}
<h1>Create account</h1>
<form method="post" action="/register">
<label>First name <input name="firstName" required></label>
<label>Last name <input name="lastName" required></label>
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Phone <input name="phone" inputmode="numeric"></label>
<label>Password <input type="password" name="password" minlength="8" required></label>
<button type="submit">Register</button>
</form>
<p><a href="/login">Already registered? Sign in</a></p>
{{template "footer" .}}{{end}}

{{define "home.html"}}{{template "header" .}}
<h1>Welcome, {{.User.DisplayName}}</h1>
<dl>
<dt>Email</dt><dd>{{.User.Email}}</dd>
{{if .User.Role}}<dt>Role</dt><dd>{{.User.Role}}</dd>{{end}}
</dl>
{{template "footer" .}}{{end}}

{{define "users.html"}}{{template "header" .}}
<h1>Users</h1>
<table>
<thead><tr><th>ID</th><th>Email</th><th>Name</th><th>Role</th></tr></thead>
<tbody>
{{range .Users}}<tr><td>{{.ID}}</td><td>{{.Email}}</td><td>{{.DisplayName}}</td><td>{{.Role}}</td></tr>
{{else}}<tr><td colspan="4">No users</td></tr>
{{end}}</tbody>
</table>
{{template "footer" .}}{{end}}
`))

// page is the data every template renders from
type page struct {
	Title string
	Error string
	Email string
	User  *session.User
	Users []*session.User
}
