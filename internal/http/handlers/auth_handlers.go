package handlers

import (
	"net/http"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/diagnosis/reservou/internal/gate"
	"github.com/diagnosis/reservou/internal/http/response"
	"github.com/diagnosis/reservou/internal/service"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/diagnosis/reservou/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const linkSentMessage = "check your email for the access link"

type sessionResponse struct {
	User     domain.UserInfo `json:"user"`
	Created  bool            `json:"created"`
	Redirect string          `json:"redirect"`
}

func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if err := h.authService.RequestSignUpLink(r.Context(), &req); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, nil, linkSentMessage)
}

func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if err := h.authService.RequestSignInLink(r.Context(), &req); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, nil, linkSentMessage)
}

// Access exchanges a magic link token for a session cookie.
func (h *Handlers) Access(w http.ResponseWriter, r *http.Request) {
	var req domain.AccessRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	sess, err := h.authService.ConsumeMagicLink(r.Context(), req.Token)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.writeSession(w, sess, "signed in")
}

// AccessLink is the deep link sent by email. It always answers with a
// redirect: to the next page on success, back to sign-in otherwise.
func (h *Handlers) AccessLink(w http.ResponseWriter, r *http.Request) {
	sess, err := h.authService.ConsumeMagicLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if !apperror.Is(err, apperror.KindBadRequest) {
			response.Error(w, r, err)
			return
		}
		logger.InfoContext(r.Context(), "Rejected access link", "error", err)
		http.Redirect(w, r, gate.SignInPath+"?error=invalid-link", http.StatusSeeOther)
		return
	}
	h.codec.SetCookie(w, sess.Token)
	http.Redirect(w, r, landingFor(sess.Payload), http.StatusSeeOther)
}

func (h *Handlers) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req domain.GoogleSignInRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	sess, err := h.authService.SignInWithGoogle(r.Context(), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.writeSession(w, sess, "signed in")
}

func (h *Handlers) GoogleSignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.GoogleSignUpRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	sess, err := h.authService.SignUpWithGoogle(r.Context(), &req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.writeSession(w, sess, "signed up")
}

func (h *Handlers) writeSession(w http.ResponseWriter, sess *service.Session, message string) {
	h.codec.SetCookie(w, sess.Token)
	response.OK(w, http.StatusOK, sessionResponse{
		User:     sess.User,
		Created:  sess.Created,
		Redirect: landingFor(sess.Payload),
	}, message)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.authService.CurrentUser(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, profile, "")
}

func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	h.codec.ClearCookie(w)
	http.Redirect(w, r, h.appURL+gate.SignInPath, http.StatusSeeOther)
}
