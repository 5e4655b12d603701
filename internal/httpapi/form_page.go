package httpapi

import (
	"html/template"
	"net/http"

	"warm-outreach/internal/apperr"
)

var formPage = template.Must(template.New("form").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Warm Outreach</title></head>
<body>
<h2>Warm Outreach: Relationship Strength</h2>
{{if .Error}}<p>{{.Error}}</p>
{{else if .View.Message}}<p>{{.View.Message}}</p>
{{else}}
<p>Hi {{.View.Email}}, rate how well you know each lead.</p>
<form id="f">
{{range .View.Leads}}
<fieldset data-row="{{.Row}}" data-lead="{{.Name}}">
  <legend>{{if .ProfileURL}}<a href="{{.ProfileURL}}" target="_blank">{{.Name}}</a>{{else}}{{.Name}}{{end}}</legend>
  <select name="score">{{range $.View.ScoreOptions}}<option>{{.}}</option>{{end}}</select>
  <input name="comment" placeholder="Comment (optional)">
</fieldset>
{{end}}
<button type="submit">Submit</button>
</form>
<p id="status"></p>
<script>
document.getElementById("f").addEventListener("submit", async (e) => {
  e.preventDefault();
  const responses = [...document.querySelectorAll("fieldset")].map(fs => ({
    row_index: Number(fs.dataset.row),
    lead: fs.dataset.lead,
    score: fs.querySelector("select").value,
    comment: fs.querySelector("input").value,
  }));
  const res = await fetch("/form?email=" + encodeURIComponent({{.View.Email}}), {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({responses}),
  });
  const body = await res.json();
  document.getElementById("status").textContent = res.ok
    ? "Thank you! Recorded " + body.updated + " response(s)."
    : body.error.message;
  if (res.ok) location.reload();
});
</script>
{{end}}
</body>
</html>
`))

// Page serves the deep link target (/?email=...) as a minimal HTML form
// backed by the JSON form endpoints.
func (h FormHandler) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := struct {
		Error string
		View  formView
	}{}

	status := http.StatusOK
	if identity := identityFrom(r); identity == "" {
		status = http.StatusBadRequest
		data.Error = apperr.MissingIdentity().Message
	} else if v, err := h.pending(r, identity); err != nil {
		status = http.StatusServiceUnavailable
		data.Error = apperr.MessageOf(err)
	} else {
		data.View = v
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = formPage.Execute(w, data)
}
