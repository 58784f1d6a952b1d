package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/videohub/internal/auth"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/service"
	"github.com/sakif/videohub/internal/view"
)

// DiscussionHandler serves both discussion trees as JSON with embedded
// HTML fragments. It owns the edit token cookie: tokens minted by the
// service are merged into it here, and the service only ever sees a
// read-only view of it.
type DiscussionHandler struct {
	svc    *service.DiscussionService
	view   *view.Renderer
	jar    *auth.TokenJar
	logger *slog.Logger
}

func NewDiscussionHandler(svc *service.DiscussionService, renderer *view.Renderer, jar *auth.TokenJar, logger *slog.Logger) *DiscussionHandler {
	return &DiscussionHandler{svc: svc, view: renderer, jar: jar, logger: logger}
}

// tree bundles what differs between comments and responses so the
// handlers below are written once.
type tree struct {
	kind string
	key  func(id string) string
}

var (
	commentTree  = tree{kind: view.KindComment, key: auth.CommentKey}
	responseTree = tree{kind: view.KindResponse, key: auth.ResponseKey}
)

func postInput(r *http.Request) service.PostInput {
	return service.PostInput{
		Content:   r.FormValue("content"),
		Name:      r.FormValue("name"),
		Anonymous: formBool(r, "is_anonymous"),
		ParentID:  r.FormValue("parent_id"),
	}
}

// ===== COMMENTS =====

// HandleListComments answers GET /videos/{id}/comments.
func (h *DiscussionHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, count, err := h.svc.TopComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeList(w, commentTree, view.Items(comments), count)
}

// HandleAddComment answers POST /videos/{id}/comments.
func (h *DiscussionHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	posted, err := h.svc.AddComment(r.Context(), requestContext(r), chi.URLParam(r, "id"), postInput(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePosted(w, r, commentTree, posted)
}

func (h *DiscussionHandler) HandleCommentReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.svc.CommentReplies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeList(w, commentTree, view.Items(replies), len(replies))
}

func (h *DiscussionHandler) HandleEditComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	posted, err := h.svc.EditComment(r.Context(), requestContext(r), h.tokens(r, commentTree.key(id)),
		id, r.FormValue("content"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePosted(w, r, commentTree, posted)
}

func (h *DiscussionHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	count, err := h.svc.DeleteComment(r.Context(), requestContext(r), h.tokens(r, commentTree.key(id)), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.forget(w, r, commentTree.key(id))
	writeJSON(w, http.StatusOK, countEnvelope{Success: true, Count: count})
}

// HandleCommentApproval answers POST /admin/comments/{id}/approval.
func (h *DiscussionHandler) HandleCommentApproval(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.SetCommentApproval(r.Context(), requestContext(r), chi.URLParam(r, "id"), formBool(r, "approved"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countEnvelope{Success: true, Count: count})
}

// ===== RESPONSES =====

// HandleListResponses answers GET /comments/{id}/responses.
func (h *DiscussionHandler) HandleListResponses(w http.ResponseWriter, r *http.Request) {
	responses, count, err := h.svc.TopResponses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeList(w, responseTree, view.ResponseItems(responses), count)
}

// HandleAddResponse answers POST /comments/{id}/responses.
func (h *DiscussionHandler) HandleAddResponse(w http.ResponseWriter, r *http.Request) {
	posted, err := h.svc.AddResponse(r.Context(), requestContext(r), chi.URLParam(r, "id"), postInput(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePosted(w, r, responseTree, posted)
}

func (h *DiscussionHandler) HandleResponseReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.svc.ResponseReplies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeList(w, responseTree, view.ResponseItems(replies), len(replies))
}

func (h *DiscussionHandler) HandleEditResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	posted, err := h.svc.EditResponse(r.Context(), requestContext(r), h.tokens(r, responseTree.key(id)),
		id, r.FormValue("content"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePosted(w, r, responseTree, posted)
}

func (h *DiscussionHandler) HandleDeleteResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	count, err := h.svc.DeleteResponse(r.Context(), requestContext(r), h.tokens(r, responseTree.key(id)), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.forget(w, r, responseTree.key(id))
	writeJSON(w, http.StatusOK, countEnvelope{Success: true, Count: count})
}

func (h *DiscussionHandler) HandleResponseApproval(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.SetResponseApproval(r.Context(), requestContext(r), chi.URLParam(r, "id"), formBool(r, "approved"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countEnvelope{Success: true, Count: count})
}

// ===== SHARED =====

// writePosted renders the item and, for a fresh anonymous post, stores
// the minted token in the client's cookie before the body is written.
func (h *DiscussionHandler) writePosted(w http.ResponseWriter, r *http.Request, t tree, posted *service.Posted) {
	html, err := h.view.Post(t.kind, posted.Item)
	if err != nil {
		writeError(w, err)
		return
	}

	if posted.EditToken != "" {
		tokens := h.jar.Tokens(r)
		tokens.Merge(t.key(posted.Item.ID), posted.EditToken)
		dropped, err := h.jar.SetTokens(w, tokens)
		switch {
		case err != nil:
			// The token still goes back in the body.
			h.logger.Warn("storing edit token cookie failed",
				slog.String("itemID", posted.Item.ID),
				slog.String("error", err.Error()),
			)
		case dropped > 0:
			h.logger.Debug("edit token cookie full, dropped oldest entries",
				slog.Int("dropped", dropped),
			)
		}
	}

	writeJSON(w, http.StatusOK, postEnvelope{
		Success:   true,
		HTML:      html,
		Count:     posted.Count,
		ID:        posted.Item.ID,
		EditToken: posted.EditToken,
	})
}

func (h *DiscussionHandler) writeList(w http.ResponseWriter, t tree, posts []model.Post, count int) {
	html, err := h.view.Posts(t.kind, posts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope{Success: true, HTML: html, Count: count})
}

// editTokenHeader lets scripts present a token from an earlier response
// body. The edit_token form field does the same for plain forms.
const editTokenHeader = "X-Edit-Token"

// tokens is the cookie's token list plus any token presented for key with
// the request itself, so a token the client kept from the response body
// works after the cookie has dropped it.
func (h *DiscussionHandler) tokens(r *http.Request, key string) auth.EditTokens {
	presented := r.Header.Get(editTokenHeader)
	if presented == "" {
		presented = r.FormValue("edit_token")
	}
	return h.jar.Tokens(r).WithPresented(key, presented)
}

// forget drops a deleted item's token from the cookie. Nothing is
// written when the client never held one.
func (h *DiscussionHandler) forget(w http.ResponseWriter, r *http.Request, key string) {
	tokens := h.jar.Tokens(r)
	if !tokens.Delete(key) {
		return
	}
	if _, err := h.jar.SetTokens(w, tokens); err != nil {
		h.logger.Warn("pruning edit token cookie failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
