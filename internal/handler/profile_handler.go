package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/service"
)

// ProfileHandler serves /user/profile.
type ProfileHandler struct {
	responder
	profiles *service.ProfileService
}

func NewProfileHandler(profiles *service.ProfileService, logger *zap.Logger, debug bool) *ProfileHandler {
	return &ProfileHandler{responder: newResponder(logger, debug), profiles: profiles}
}

type friendTarget struct {
	RequestToID string `json:"requestToId" validate:"required"`
}

type blockTarget struct {
	BlockUserID string `json:"blockUserId" validate:"required"`
}

type unblockTarget struct {
	UnblockUserID string `json:"unblockUserId" validate:"required"`
}

func (h *ProfileHandler) RegisterRoutes(r chi.Router, mw *Middleware) {
	r.Route("/user/profile", func(r chi.Router) {
		r.With(mw.RateLimit("auth")).Post("/resend-reset-otp", h.ResendResetOTP)

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)

			r.Post("/send-friend-request", h.SendFriendRequest)
			r.Post("/remove-friend", h.RemoveFriend)
			r.Post("/respond-friend", h.RespondFriend)
			r.Get("/list-friends-and-groups", h.ListFriendsAndGroups)

			r.Get("/get-profile/{userId}", h.GetProfile)
			r.Get("/get-all-profiles", h.ListProfiles)
			r.Put("/update-profile", h.UpdateProfile)
			r.Delete("/delete-profile", h.DeleteProfile)

			r.Post("/upload-profile-picture", h.uploadImage(service.SlotProfile, "profilePicture", "Profile Picture Uploaded Successfully"))
			r.Post("/upload-cover-picture", h.uploadImage(service.SlotCover, "coverPicture", "Cover Picture Uploaded Successfully"))
			r.Post("/upload-large-file", h.UploadLargeFile)
			r.Get("/renew-signed-url", h.RenewSignedURL)

			r.Post("/create-group", h.CreateGroup)
			r.Get("/search-user", h.SearchUsers)

			r.Get("/list-blocked-users", h.BlockedUsers)
			r.Post("/block-user", h.BlockUser)
			r.Post("/unblock-user", h.UnblockUser)

			r.Post("/resend-verify-otp", h.ResendVerifyOTP)
			r.Post("/update-Email", h.UpdateEmail)
			r.Post("/change-Email", h.ChangeEmail)
			r.Post("/deactivate-account", h.DeactivateAccount)
		})
	})
}

func (h *ProfileHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req friendTarget
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.profiles.SendFriendRequest(r.Context(), PrincipalFrom(r.Context()).User, req.RequestToID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Friend Request Sent Successfully", nil)
}

func (h *ProfileHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	var req friendTarget
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.profiles.RemoveFriend(r.Context(), PrincipalFrom(r.Context()).User.ID, req.RequestToID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Friend Request Removed Successfully", nil)
}

func (h *ProfileHandler) RespondFriend(w http.ResponseWriter, r *http.Request) {
	var req service.RespondFriendRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.profiles.RespondFriendRequest(r.Context(), PrincipalFrom(r.Context()).User.ID, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Friendship Updated Successfully", nil)
}

func (h *ProfileHandler) ListFriendsAndGroups(w http.ResponseWriter, r *http.Request) {
	status := models.FriendshipStatus(r.URL.Query().Get("status"))
	res, err := h.profiles.FriendsAndGroups(r.Context(), PrincipalFrom(r.Context()).User.ID, status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if status == "" {
		status = models.FriendshipAccepted
	}
	h.ok(w, fmt.Sprintf("%s Friends Fetched Successfully", status), res)
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Profile Fetched Successfully", profile)
}

func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	page, err := h.profiles.ListProfiles(r.Context(), pageParams(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Profiles Fetched Successfully", page)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.profiles.UpdateProfile(r.Context(), PrincipalFrom(r.Context()).User.ID, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Profile Updated Successfully", nil)
}

func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.DeleteProfile(r.Context(), PrincipalFrom(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Profile Deleted Successfully", nil)
}

func (h *ProfileHandler) uploadImage(slot service.ImageSlot, field, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := parseMultipart(r); err != nil {
			h.fail(w, r, err)
			return
		}
		f, closeFile, err := openFile(r, field)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		defer closeFile()

		obj, err := h.profiles.UploadImage(r.Context(), PrincipalFrom(r.Context()).User, slot, f)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, message, obj)
	}
}

func (h *ProfileHandler) UploadLargeFile(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(r); err != nil {
		h.fail(w, r, err)
		return
	}
	f, closeFile, err := openFile(r, "file")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer closeFile()

	obj, err := h.profiles.UploadLargeFile(r.Context(), PrincipalFrom(r.Context()).User.ID, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Large File Uploaded Successfully", obj)
}

func (h *ProfileHandler) RenewSignedURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.SignedURLRequest{Key: q.Get("key"), KeyType: service.KeyType(q.Get("keyType"))}
	url, err := h.profiles.RenewSignedURL(r.Context(), PrincipalFrom(r.Context()).User, &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Signed URL Renewed Successfully", map[string]string{"key": req.Key, "url": url})
}

func (h *ProfileHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req service.CreateGroupRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	group, err := h.profiles.CreateGroup(r.Context(), PrincipalFrom(r.Context()).User, &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Group Created Successfully", group)
}

func (h *ProfileHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	users, err := h.profiles.SearchUsers(r.Context(), PrincipalFrom(r.Context()).User, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(users) == 0 {
		h.ok(w, "No users found", []models.User{})
		return
	}
	h.ok(w, "Search Results", users)
}

func (h *ProfileHandler) BlockedUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.profiles.BlockedUsers(r.Context(), PrincipalFrom(r.Context()).User)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	h.ok(w, "Blocked Users Fetched Successfully", users)
}

func (h *ProfileHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	var req blockTarget
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.profiles.BlockUser(r.Context(), PrincipalFrom(r.Context()).User, req.BlockUserID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "User Blocked Successfully", nil)
}

func (h *ProfileHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	var req unblockTarget
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.profiles.UnblockUser(r.Context(), PrincipalFrom(r.Context()).User, req.UnblockUserID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "User Unblocked Successfully", nil)
}

func (h *ProfileHandler) ResendVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.ResendVerifyOTP(r.Context(), PrincipalFrom(r.Context()).User); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "OTP has been resent to your email", nil)
}

func (h *ProfileHandler) ResendResetOTP(w http.ResponseWriter, r *http.Request) {
	var req service.ResendResetRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.profiles.ResendResetOTP(r.Context(), &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "OTP has been resent to your email", nil)
}

func (h *ProfileHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.UpdateEmail(r.Context(), PrincipalFrom(r.Context()).User); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "OTP has been sent to your email", nil)
}

func (h *ProfileHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req service.ChangeEmailRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.profiles.ChangeEmail(r.Context(), PrincipalFrom(r.Context()).User, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Email has been changed successfully, For verification The OTP has been sent to your new email", nil)
}

func (h *ProfileHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.DeactivateAccount(r.Context(), PrincipalFrom(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, "Account has been deactivated", nil)
}
