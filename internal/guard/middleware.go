package guard

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/paneld-dev/paneld/internal/session"
)

const snapshotKey = "session"

// Source is the read side of the session store plus the verification latch
type Source interface {
	Snapshot() session.Snapshot
	EnsureVerified(ctx context.Context)
	WaitSettled(ctx context.Context) (session.Snapshot, error)
}

type Options struct {
	LoginPath string
	HomePath  string
	// SettleWait holds a request up to this long for the first verification
	// before answering with the loading placeholder
	SettleWait time.Duration
	// RetryAfter is the loading page's refresh delay (default 1s)
	RetryAfter time.Duration
	Logger     zerolog.Logger
}

var loadingPage = template.Must(template.New("loading").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Seconds}}">
<title>Loading</title>
</head>
<body><p class="loading">Checking your session&hellip;</p></body>
</html>
`))

// Middleware guards a route group. The first request to reach any guard
// starts the store's single verification.
func Middleware(src Source, mode Mode, opts Options) gin.HandlerFunc {
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.HomePath == "" {
		opts.HomePath = "/"
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Second
	}
	log := opts.Logger.With().Str("guard", mode.String()).Logger()

	return func(c *gin.Context) {
		snap := src.Snapshot()
		if snap.Status == session.StatusUnknown {
			go src.EnsureVerified(context.WithoutCancel(c.Request.Context()))
		}

		if !snap.Status.Settled() && opts.SettleWait > 0 {
			ctx, cancel := context.WithTimeout(c.Request.Context(), opts.SettleWait)
			if settled, err := src.WaitSettled(ctx); err == nil {
				snap = settled
			}
			cancel()
		}

		decision := Decide(snap, c.Request.URL.Path, mode, opts.LoginPath, opts.HomePath)
		log.Debug().
			Str("path", c.Request.URL.Path).
			Stringer("state", snap.Status).
			Stringer("action", decision.Action).
			Msg("Guard decision")

		switch decision.Action {
		case RenderLoading:
			renderLoading(c, opts.RetryAfter, log)
			c.Abort()
		case Redirect:
			c.Redirect(http.StatusFound, decision.Target)
			c.Abort()
		default:
			c.Set(snapshotKey, snap)
			c.Next()
		}
	}
}

// SnapshotFrom returns the session snapshot the guard admitted the request with
func SnapshotFrom(c *gin.Context) (session.Snapshot, bool) {
	v, exists := c.Get(snapshotKey)
	if !exists {
		return session.Snapshot{}, false
	}
	snap, ok := v.(session.Snapshot)
	return snap, ok
}

func renderLoading(c *gin.Context, retryAfter time.Duration, log zerolog.Logger) {
	c.Header("Cache-Control", "no-store")

	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	if wantsJSON(c.Request) {
		c.JSON(http.StatusAccepted, gin.H{"status": "verifying"})
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := loadingPage.Execute(c.Writer, struct{ Seconds int }{seconds}); err != nil {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Failed to render loading page")
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
