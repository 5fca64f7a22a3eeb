package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/garmin-osm-sync/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultCallbackHost = "127.0.0.1"
	defaultCallbackPort = "8080"
)

const confirmationPage = `<html><body style='font-family:sans-serif; padding:2rem;'>` +
	`<h2>Authorization complete</h2><p>You can close this tab and return to the application.</p>` +
	`</body></html>`

// Callback is the query data of the single request received by a CallbackListener.
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	Path             string
}

// CallbackListener is a one-shot HTTP listener bound to the redirect URI's host and port.
// Every request is answered with a static confirmation page; only the first one is delivered
// to Wait.
type CallbackListener struct {
	ln     net.Listener
	srv    *http.Server
	result chan Callback
	once   sync.Once
}

// NewCallbackListener binds the listener immediately so the browser cannot race it.
func NewCallbackListener(redirectURI string) (*CallbackListener, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("[CallbackListener New] invalid redirect uri: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		host = defaultCallbackHost
	}
	port := u.Port()
	if port == "" {
		port = defaultCallbackPort
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("[CallbackListener New] listen on %s:%s: %w", host, port, err)
	}

	l := &CallbackListener{
		ln:     ln,
		result: make(chan Callback, 1),
	}
	l.srv = &http.Server{
		Handler:           chainMiddleware(l.handle, loggingMiddleware, recoverMiddleware, noStoreMiddleware),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("Callback listener stopped")
		}
	}()
	return l, nil
}

// Addr returns the bound address.
func (l *CallbackListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *CallbackListener) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, confirmationPage)

	q := r.URL.Query()
	l.once.Do(func() {
		l.result <- Callback{
			Code:             q.Get("code"),
			State:            q.Get("state"),
			Error:            q.Get("error"),
			ErrorDescription: q.Get("error_description"),
			Path:             r.URL.RequestURI(),
		}
	})
}

// Wait blocks until the first request arrives or ctx ends. A deadline on ctx surfaces as
// errors.ErrAuthorizationTimeout.
func (l *CallbackListener) Wait(ctx context.Context) (Callback, error) {
	select {
	case cb := <-l.result:
		return cb, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Callback{}, apperrors.ErrAuthorizationTimeout
		}
		return Callback{}, ctx.Err()
	}
}

// Close unbinds the listener, letting an in-flight confirmation page finish.
func (l *CallbackListener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.srv.Shutdown(ctx)
}
