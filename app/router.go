package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/sushihentaime/quillpost/internal/common"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodGet, "/api/v1/healthcheck", app.healthCheckHandler)

	// user service
	router.HandlerFunc(http.MethodPost, "/api/v1/users/register", app.registerUserHandler)
	router.HandlerFunc(http.MethodPost, "/api/v1/users/login", app.loginUserHandler)
	router.HandlerFunc(http.MethodPost, "/api/v1/users/logout", app.requireAuthUser(app.logoutUserHandler))
	router.HandlerFunc(http.MethodPut, "/api/v1/admin/users/:id/role", app.requireRole(app.setUserRoleHandler, common.RoleAdmin))

	// post service
	router.HandlerFunc(http.MethodGet, "/api/v1/posts", app.listPostsHandler)
	router.HandlerFunc(http.MethodPost, "/api/v1/posts", app.requireAuthUser(app.createPostHandler))
	router.HandlerFunc(http.MethodGet, "/api/v1/posts/:id", app.getPostHandler)
	router.HandlerFunc(http.MethodPatch, "/api/v1/posts/:id", app.requireAuthUser(app.updatePostHandler))
	router.HandlerFunc(http.MethodDelete, "/api/v1/posts/:id", app.requireAuthUser(app.deletePostHandler))
	router.HandlerFunc(http.MethodGet, "/api/v1/filters", app.filterOptionsHandler)
	router.HandlerFunc(http.MethodGet, "/api/v1/tags", app.listTagsHandler)

	// comment service
	router.HandlerFunc(http.MethodGet, "/api/v1/posts/:id/comments", app.listCommentsHandler)
	router.HandlerFunc(http.MethodPost, "/api/v1/posts/:id/comments", app.createCommentHandler)
	router.HandlerFunc(http.MethodGet, "/api/v1/posts/:id/comments/:commentId", app.getCommentHandler)
	router.HandlerFunc(http.MethodPatch, "/api/v1/posts/:id/comments/:commentId", app.requireAuthUser(app.updateCommentHandler))
	router.HandlerFunc(http.MethodDelete, "/api/v1/posts/:id/comments/:commentId", app.requireAuthUser(app.deleteCommentHandler))

	return app.recoverPanic(app.logRequest(app.enableCORS(app.rateLimit(app.authenticate(router)))))
}
