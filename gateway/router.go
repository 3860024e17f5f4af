package gateway

import (
	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/middleware"
)

// NewRouter wires every gateway endpoint from §6's gateway wire table.
// /ok is unauthenticated; everything else requires a valid session token.
func NewRouter(c *Collection) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest()
	withSession := func(next httprouter.Handle) httprouter.Handle {
		return middleware.RequireSession(c.Cli.SessionSecret, next)
	}

	router.GET("/ok", withLogging(c.Ok()))
	router.POST("/v1/uploads", withLogging(withSession(c.Uploads())))
	router.POST("/v1/process", withLogging(withSession(c.Process())))
	router.GET("/v1/status/:upload_id", withLogging(withSession(c.Status())))
	router.GET("/v1/result/:upload_id", withLogging(withSession(c.Result())))

	return router
}
