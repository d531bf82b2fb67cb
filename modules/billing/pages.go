package billing

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/aulcerts/entitlement/pkg/completion"
)

// Completion pages close the cross-window loop: when the checkout context
// has an opener, the page posts a typed message back and closes itself;
// opened by direct navigation, it redirects with the outcome encoded in
// query parameters so the original page can resolve it at load time.
var completionPage = template.Must(template.New("completion").Parse(`<!DOCTYPE html>
<html>
  <body>
    <script>
      if (window.opener) {
        {{if .Message}}window.opener.postMessage({{.Message}}, window.location.origin);{{end}}
        window.close();
      } else {
        window.location.href = {{.RedirectURL}};
      }
    </script>
    <p>{{.Text}}</p>
  </body>
</html>
`))

type completionPageData struct {
	Message     *completion.Message
	RedirectURL string
	Text        string
}

func (m *Module) renderCompletionPage(w http.ResponseWriter, data completionPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := completionPage.Execute(w, data); err != nil {
		m.log.Error("failed to render completion page", "error", err)
	}
}

func (m *Module) handleSuccessPage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	// Encode rather than concatenate: the session id comes from the request
	// and must not smuggle extra query parameters into the redirect.
	q := url.Values{"success": {"true"}}
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}

	m.renderCompletionPage(w, completionPageData{
		Message: &completion.Message{
			Type:      completion.MessageSuccess,
			SessionID: sessionID,
		},
		RedirectURL: "/settings?" + q.Encode(),
		Text:        "Payment successful! This window should close automatically.",
	})
}

func (m *Module) handleCancelPage(w http.ResponseWriter, r *http.Request) {
	m.renderCompletionPage(w, completionPageData{
		Message:     &completion.Message{Type: completion.MessageCancel},
		RedirectURL: "/?canceled=true",
		Text:        "Payment canceled. This window should close automatically.",
	})
}

func (m *Module) handlePortalReturnPage(w http.ResponseWriter, r *http.Request) {
	// Portal return carries no outcome; the page only closes or goes home.
	m.renderCompletionPage(w, completionPageData{
		RedirectURL: "/settings",
		Text:        "You can close this window now.",
	})
}
