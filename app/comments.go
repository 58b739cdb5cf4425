package main

import (
	"fmt"
	"net/http"

	"github.com/sushihentaime/quillpost/internal/commentservice"
)

func (app *application) readCommentParams(r *http.Request) (postID, commentID int, err error) {
	postID, err = app.readIDParam(r, "id")
	if err != nil {
		return 0, 0, err
	}

	commentID, err = app.readIDParam(r, "commentId")
	if err != nil {
		return 0, 0, err
	}

	return postID, commentID, nil
}

func (app *application) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	comments, err := app.commentService.ListComments(r.Context(), postID)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"comments": comments}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) getCommentHandler(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := app.readCommentParams(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	comment, err := app.commentService.GetComment(r.Context(), postID, commentID)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"comment": comment}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createCommentHandler is open to anonymous visitors, who must then name themselves.
func (app *application) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	postID, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	var input commentservice.CreateCommentRequest
	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	comment, err := app.commentService.CreateComment(r.Context(), app.caller(r), postID, &input)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/api/v1/posts/%d/comments/%d", postID, comment.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"comment": comment}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

func (app *application) updateCommentHandler(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := app.readCommentParams(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	var input updateCommentRequest
	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	comment, err := app.commentService.UpdateComment(r.Context(), app.caller(r), postID, commentID, input.Content)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"comment": comment}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := app.readCommentParams(r)
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	err = app.commentService.DeleteComment(r.Context(), app.caller(r), postID, commentID)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "comment successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
