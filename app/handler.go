package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sushihentaime/quillpost/internal/common"
	"github.com/sushihentaime/quillpost/internal/postservice"
)

type registerUserRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input registerUserRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user, err := app.userService.RegisterUser(r.Context(), input.Name, input.Email, input.Password, input.ConfirmPassword)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type loginUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (app *application) loginUserHandler(w http.ResponseWriter, r *http.Request) {
	var input loginUserRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	user, token, err := app.userService.LoginUser(r.Context(), input.Email, input.Password)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"user": user, "role": user.Role, "token": token}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) logoutUserHandler(w http.ResponseWriter, r *http.Request) {
	user := app.getUserContext(r)

	err := app.userService.LogoutUser(r.Context(), user.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "successfully logged out"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type setUserRoleRequest struct {
	Role string `json:"role"`
}

func (app *application) setUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	var input setUserRoleRequest
	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	role := common.Role(strings.ToUpper(strings.TrimSpace(input.Role)))

	user, err := app.userService.SetUserRole(r.Context(), app.caller(r), id, role)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// readSearchFilter builds a search filter from the query string. Unknown author ids are rejected
// before the search runs.
func (app *application) readSearchFilter(r *http.Request) (postservice.SearchFilter, error) {
	qs := r.URL.Query()

	var (
		f   postservice.SearchFilter
		err error
	)

	f.AuthorNames = readList(qs, "authorNames", "authorName")

	authorID, found, err := readInt(qs, 0, "authorId")
	if err != nil {
		return f, err
	}
	if found {
		if authorID < 1 {
			return f, queryError("invalid authorId parameter")
		}

		author, err := app.userService.GetUserByID(r.Context(), authorID)
		if err != nil {
			if errors.Is(err, common.ErrRecordNotFound) {
				return f, queryError("author not found")
			}
			return f, err
		}
		f.AuthorIDs = []int{author.ID}
	}

	f.TagIDs, err = readIntList(qs, "tagIds", "tagId")
	if err != nil {
		return f, err
	}

	f.Search = qs.Get("search")

	f.FromDate, err = readDate(qs, "fromDate", app.location)
	if err != nil {
		return f, err
	}
	f.ToDate, err = readDate(qs, "toDate", app.location)
	if err != nil {
		return f, err
	}

	f.Size, _, err = readInt(qs, 10, "limit", "size")
	if err != nil {
		return f, err
	}

	f.Page, found, err = readInt(qs, 0, "page")
	if err != nil {
		return f, err
	}
	if !found {
		start, hasStart, err := readInt(qs, 1, "start")
		if err != nil {
			return f, err
		}
		if hasStart && start > 0 {
			f.Start = start
		}
	}

	f.Direction = postservice.Direction(strings.ToUpper(readString(qs, "DESC", "order", "direction")))

	return f, nil
}

func (app *application) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := app.readSearchFilter(r)
	if err != nil {
		var qerr queryError
		if errors.As(err, &qerr) {
			app.badRequestErrorResponse(w, r, err)
			return
		}
		app.serverErrorResponse(w, r, err)
		return
	}

	page, err := app.postService.SearchPosts(r.Context(), filter)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"posts": page.Posts, "metadata": page.Metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) getPostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	post, err := app.postService.GetPost(r.Context(), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	data := envelope{"post": post}

	tag, err := etag(data)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == tag {
		w.Header().Set("ETag", tag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	err = app.writeJSON(w, http.StatusOK, data, http.Header{"ETag": []string{tag}})
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) createPostHandler(w http.ResponseWriter, r *http.Request) {
	var input postservice.CreatePostRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	post, err := app.postService.CreatePost(r.Context(), app.caller(r), &input)
	if err != nil {
		if errors.Is(err, postservice.ErrAuthorNotFound) {
			app.failedValidationErrorResponse(w, r, map[string]string{"author_id": "author not found"})
			return
		}
		app.serviceErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/api/v1/posts/%d", post.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"post": post}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	var input postservice.UpdatePostRequest
	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	post, err := app.postService.UpdatePost(r.Context(), app.caller(r), id, &input)
	if err != nil {
		if errors.Is(err, postservice.ErrAuthorNotFound) {
			app.failedValidationErrorResponse(w, r, map[string]string{"author_id": "author not found"})
			return
		}
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"post": post}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundErrorResponse(w, r)
		return
	}

	err = app.postService.DeletePost(r.Context(), app.caller(r), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "post successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) filterOptionsHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := app.postService.FilterOptions(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"authors": opts.Authors, "tags": opts.Tags}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listTagsHandler(w http.ResponseWriter, r *http.Request) {
	tags, err := app.postService.ListTags(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"tags": tags}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
