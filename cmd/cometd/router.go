package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kataras/iris/v12"

	"github.com/googollee/go-comet/config"
)

// newHandler mounts h on path with the named router.
func newHandler(router, path string, h http.Handler) (http.Handler, error) {
	switch router {
	case config.RouterStd:
		mux := http.NewServeMux()
		mux.Handle(path, h)
		return mux, nil

	case config.RouterGin:
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())
		r.Any(path, gin.WrapH(h))
		return r, nil

	case config.RouterIris:
		app := iris.New()
		app.Any(path, iris.FromStd(h))
		if err := app.Build(); err != nil {
			return nil, fmt.Errorf("build iris router: %w", err)
		}
		return app, nil
	}

	return nil, fmt.Errorf("%w: %q", config.ErrInvalidRouter, router)
}
