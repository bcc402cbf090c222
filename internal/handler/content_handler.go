package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/service"
	"social-service/internal/storage"
)

// PostHandler serves /post. Writes accept JSON or multipart with attachments.
type PostHandler struct {
	responder
	posts *service.PostService
}

func NewPostHandler(posts *service.PostService, logger *zap.Logger, debug bool) *PostHandler {
	return &PostHandler{responder: newResponder(logger, debug), posts: posts}
}

func (h *PostHandler) RegisterRoutes(r chi.Router, mw *Middleware) {
	r.Route("/post", func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Post("/add-post", h.AddPost)
		r.Get("/home", h.Home)
		r.Get("/user", h.MyPosts)
		r.Get("/{postId}/comments", h.PostWithComments)
		r.Put("/update/{postId}", h.UpdatePost)
		r.Delete("/delete/{postId}", h.DeletePost)
	})
}

func (h *PostHandler) AddPost(w http.ResponseWriter, r *http.Request) {
	var (
		req   service.AddPostRequest
		files []storage.File
	)
	if isMultipart(r) {
		if err := parseMultipart(r); err != nil {
			h.fail(w, r, err)
			return
		}
		allow, err := formBool(r, "allowComments")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		req = service.AddPostRequest{
			Description:   r.FormValue("description"),
			AllowComments: allow,
			Tags:          formList(r, "tags"),
			Privacy:       models.Privacy(r.FormValue("privacy")),
		}
		var closeFiles func()
		files, closeFiles, err = openFiles(r, "attachments", maxAttachments)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		defer closeFiles()
	} else if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	post, err := h.posts.AddPost(r.Context(), PrincipalFrom(r.Context()).User, &req, files)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Post Added Successfully", post)
}

func (h *PostHandler) Home(w http.ResponseWriter, r *http.Request) {
	page, err := h.posts.Feed(r.Context(), PrincipalFrom(r.Context()).User, pageParams(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Posts Fetched Successfully", page)
}

func (h *PostHandler) MyPosts(w http.ResponseWriter, r *http.Request) {
	page, err := h.posts.MyPosts(r.Context(), PrincipalFrom(r.Context()).User, pageParams(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Posts Fetched Successfully", page)
}

func (h *PostHandler) PostWithComments(w http.ResponseWriter, r *http.Request) {
	res, err := h.posts.PostWithComments(r.Context(), PrincipalFrom(r.Context()).User.ID, chi.URLParam(r, "postId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Post with comments fetched successfully", map[string]any{
		"post":     res.PostView,
		"comments": res.Comments,
	})
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var (
		req   service.UpdatePostRequest
		files []storage.File
	)
	if isMultipart(r) {
		if err := parseMultipart(r); err != nil {
			h.fail(w, r, err)
			return
		}
		allow, err := formBool(r, "allowComments")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		req.AllowComments = allow
		if _, ok := r.MultipartForm.Value["description"]; ok {
			d := r.FormValue("description")
			req.Description = &d
		}
		if p := r.FormValue("privacy"); p != "" {
			privacy := models.Privacy(p)
			req.Privacy = &privacy
		}
		req.Tags = formList(r, "tags")

		var closeFiles func()
		files, closeFiles, err = openFiles(r, "attachments", maxAttachments)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		defer closeFiles()
	} else if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	post, err := h.posts.UpdatePost(r.Context(), PrincipalFrom(r.Context()).User, chi.URLParam(r, "postId"), &req, files)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Post Updated Successfully", post)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.DeletePost(r.Context(), PrincipalFrom(r.Context()).User, chi.URLParam(r, "postId")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Post Deleted Successfully", nil)
}

// CommentHandler serves /comment.
type CommentHandler struct {
	responder
	comments *service.CommentService
}

func NewCommentHandler(comments *service.CommentService, logger *zap.Logger, debug bool) *CommentHandler {
	return &CommentHandler{responder: newResponder(logger, debug), comments: comments}
}

func (h *CommentHandler) RegisterRoutes(r chi.Router, mw *Middleware) {
	r.Route("/comment", func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Post("/addComment/{refId}", h.AddComment)
		r.Put("/updateComment/{commentId}", h.UpdateComment)
		r.Delete("/deleteComment/{commentId}", h.DeleteComment)
		r.Get("/getComments/{refId}", h.CommentsOf)
		r.Get("/getCommentById/{commentId}", h.CommentByID)
		r.Get("/getAllRepliesForComment/{commentId}", h.Replies)
	})
}

// commentInput reads the body of add and update. The attachment is optional.
func commentInput(r *http.Request, dst any, fill func()) (*storage.File, func(), error) {
	noop := func() {}
	if !isMultipart(r) {
		return nil, noop, decode(r, dst)
	}
	if err := parseMultipart(r); err != nil {
		return nil, noop, err
	}
	fill()
	files, closeFiles, err := openFiles(r, "attachment", 1)
	if err != nil {
		return nil, noop, err
	}
	if len(files) == 0 {
		return nil, closeFiles, nil
	}
	return &files[0], closeFiles, nil
}

func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req service.AddCommentRequest
	file, closeFile, err := commentInput(r, &req, func() {
		req.Content = r.FormValue("content")
		req.RefKind = models.RefKind(r.FormValue("refType"))
		req.Tags = formList(r, "tags")
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer closeFile()
	req.RefID = chi.URLParam(r, "refId")

	comment, err := h.comments.AddComment(r.Context(), PrincipalFrom(r.Context()).User, &req, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Comment added successfully", comment)
}

func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateCommentRequest
	file, closeFile, err := commentInput(r, &req, func() {
		if _, ok := r.MultipartForm.Value["content"]; ok {
			c := r.FormValue("content")
			req.Content = &c
		}
		req.Tags = formList(r, "tags")
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer closeFile()

	if _, err := h.comments.UpdateComment(r.Context(), PrincipalFrom(r.Context()).User, chi.URLParam(r, "commentId"), &req, file); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Comment updated successfully", nil)
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.DeleteComment(r.Context(), PrincipalFrom(r.Context()).User, chi.URLParam(r, "commentId")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Comment deleted successfully", nil)
}

// CommentsOf lists the comments of a post, or the replies of a comment when
// refType=Comment.
func (h *CommentHandler) CommentsOf(w http.ResponseWriter, r *http.Request) {
	kind := models.RefKind(r.URL.Query().Get("refType"))
	if kind == "" {
		kind = models.RefPost
	}
	ref := models.ParentRef{Kind: kind, ID: chi.URLParam(r, "refId")}

	threads, err := h.comments.CommentsOf(r.Context(), PrincipalFrom(r.Context()).User.ID, ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(threads) == 0 {
		h.ok(w, "No comments found", map[string]any{"comments": []models.CommentThread{}})
		return
	}
	h.ok(w, "Comments fetched successfully", map[string]any{"comments": threads})
}

func (h *CommentHandler) CommentByID(w http.ResponseWriter, r *http.Request) {
	thread, err := h.comments.CommentByID(r.Context(), PrincipalFrom(r.Context()).User.ID, chi.URLParam(r, "commentId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Comment fetched successfully", map[string]any{"comment": thread})
}

func (h *CommentHandler) Replies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.comments.Replies(r.Context(), PrincipalFrom(r.Context()).User.ID, chi.URLParam(r, "commentId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if replies == nil {
		replies = []models.Comment{}
	}
	h.ok(w, "Replies fetched successfully", map[string]any{"replies": replies})
}

// ReactHandler serves /react.
type ReactHandler struct {
	responder
	reacts *service.ReactService
}

func NewReactHandler(reacts *service.ReactService, logger *zap.Logger, debug bool) *ReactHandler {
	return &ReactHandler{responder: newResponder(logger, debug), reacts: reacts}
}

func (h *ReactHandler) RegisterRoutes(r chi.Router, mw *Middleware) {
	r.Route("/react", func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Post("/{postId}/addReact", h.React)
		r.Get("/{postId}/ListAllReacts", h.ReactsOf)
	})
}

func (h *ReactHandler) React(w http.ResponseWriter, r *http.Request) {
	var req service.ReactRequest
	if err := readJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.PostID = chi.URLParam(r, "postId")
	if err := Validate(&req); err != nil {
		h.fail(w, r, err)
		return
	}

	outcome, err := h.reacts.React(r.Context(), PrincipalFrom(r.Context()).User, &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Reacted Successfully", outcome)
}

func (h *ReactHandler) ReactsOf(w http.ResponseWriter, r *http.Request) {
	reacts, err := h.reacts.ReactsOf(r.Context(), PrincipalFrom(r.Context()).User.ID, chi.URLParam(r, "postId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if reacts == nil {
		reacts = []models.React{}
	}
	h.ok(w, "Reacts Fetched Successfully", map[string]any{"reacts": reacts})
}
