package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	api_errors "github.com/reviewloop/reviewloop/api/errors"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/services/click"
)

const TokenQueryParam = "t"

var invalidLinkPage = template.Must(template.New("invalid-link").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>{{.Title}}</title></head>
<body style="font-family:sans-serif;text-align:center;padding:48px 16px;color:#333">
<h1 style="font-size:22px">{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>`))

type invalidLink struct {
	Title   string
	Message string
}

func renderInvalidLink(c *gin.Context, status int) {
	page := invalidLink{Title: "This link is not valid", Message: "The link may have expired. Please contact the business directly."}
	if status >= 500 {
		page = invalidLink{Title: "Something went wrong", Message: "Please try the link again in a few minutes."}
	}
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	if err := invalidLinkPage.Execute(c.Writer, page); err != nil {
		c.Error(err)
	}
}

// Redirect resolves a tracking link and sends the visitor on. Errors render a
// generic page and never echo the token or the cause.
func Redirect(log logger.Logger, resolver click.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.Redirect")
		defer span.Finish()

		result, err := resolver.ResolveClick(ctx, c.Query(TokenQueryParam))
		if err != nil {
			status := api_errors.ClickStatus(err)
			if status >= 500 {
				tracing.TraceErr(span, err)
				log.Errorf("click resolution failed: %v", err)
			}
			renderInvalidLink(c, status)
			return
		}

		c.Header("Cache-Control", "no-store")
		c.Redirect(http.StatusFound, result.RedirectURL)
	}
}
