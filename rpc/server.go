package rpc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const headerContentType = "Content-Type"

var allowedCORSHeaders = []string{"Accept", "Accept-Language", "Content-Language", "Origin", headerContentType}

type (
	// Registrar registers new HTTP handlers for given router.
	Registrar interface {
		Register(r *mux.Router)
	}

	// ServerConfiguration is a common configuration for REST servers.
	ServerConfiguration struct {
		// Address specifies the TCP address for the server to listen on, in
		// the form "host:port".
		Address string

		ReadTimeout       time.Duration
		ReadHeaderTimeout time.Duration
		WriteTimeout      time.Duration
		IdleTimeout       time.Duration
	}
)

func (c *ServerConfiguration) IsAddressEmpty() bool {
	return strings.TrimSpace(c.Address) == ""
}

// NewHTTPServer builds the REST server, mounting every registrar under
// /api/v1 with the CORS middleware applied.
func NewHTTPServer(conf *ServerConfiguration, registrars ...Registrar) *http.Server {
	router := mux.NewRouter().StrictSlash(true)
	router.NotFoundHandler = http.HandlerFunc(http.NotFound)
	restRouter := router.PathPrefix("/api/v1").Subrouter()
	restRouter.Use(handlers.CORS(handlers.AllowedHeaders(allowedCORSHeaders)))
	for _, registrar := range registrars {
		registrar.Register(restRouter)
	}

	return &http.Server{
		Addr:              conf.Address,
		Handler:           router,
		ReadTimeout:       conf.ReadTimeout,
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		WriteTimeout:      conf.WriteTimeout,
		IdleTimeout:       conf.IdleTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func Run(ctx context.Context, server *http.Server) error {
	return httpsrv.Run(ctx, *server, httpsrv.ShutdownTimeout(5*time.Second))
}
