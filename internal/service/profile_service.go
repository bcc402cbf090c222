package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"social-service/internal/apperror"
	"social-service/internal/audit"
	"social-service/internal/mailer"
	"social-service/internal/models"
	"social-service/internal/otp"
	"social-service/internal/pagination"
	"social-service/internal/repository"
	"social-service/internal/search"
	"social-service/internal/storage"
	"social-service/internal/token"
	"social-service/internal/util"
)

const searchLimit = 20

// KeyType names the kind of media a signed URL is renewed for.
type KeyType string

const (
	KeyProfileImage KeyType = "profile-image"
	KeyCoverImage   KeyType = "cover-image"
	KeyPostImage    KeyType = "post-image"
	KeyCommentImage KeyType = "comment-image"
)

// ImageSlot selects which profile picture an upload replaces.
type ImageSlot string

const (
	SlotProfile ImageSlot = "profile"
	SlotCover   ImageSlot = "cover"
)

func profilePrefix(userID string) string { return userID + "/profile-pictures" }
func largePrefix(userID string) string   { return userID + "/large-files" }
func postPrefix(userID string) string    { return userID + "/posts" }
func commentPrefix(userID string) string { return userID + "/comments" }

type RespondFriendRequest struct {
	FriendID string                  `json:"friendId" validate:"required"`
	Status   models.FriendshipStatus `json:"status" validate:"required,oneof=accepted rejected"`
}

type UpdateProfileRequest struct {
	FirstName   *string `json:"firstName" validate:"omitempty,min=3"`
	LastName    *string `json:"lastName" validate:"omitempty,min=3"`
	DOB         *string `json:"DOB" validate:"omitempty,adult"`
	Gender      *string `json:"gender" validate:"omitempty,oneof=male female other"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,min=10,max=15"`
}

func (r *UpdateProfileRequest) empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.DOB == nil && r.Gender == nil && r.PhoneNumber == nil
}

type SignedURLRequest struct {
	Key     string  `json:"key"`
	KeyType KeyType `json:"keyType"`
}

type CreateGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"membersIds"`
}

type ChangeEmailRequest struct {
	NewEmail string `json:"newEmail" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,len=5"`
}

type ResendResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Profile is a user with its media keys resolved to signed URLs.
type Profile struct {
	*models.User
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	CoverPicURL     string `json:"coverPicUrl,omitempty"`
}

type FriendsAndGroups struct {
	Friends []models.User         `json:"friends"`
	Groups  []models.Conversation `json:"groups"`
}

// ProfileService owns the social graph, profile data, media and account
// settings of a signed-in user.
type ProfileService struct {
	users         repository.UserRepository
	friendships   repository.FriendshipRepository
	posts         repository.PostRepository
	comments      repository.CommentRepository
	reacts        repository.ReactRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	cipher        FieldCipher
	otp           *otp.Engine
	revocations   token.RevocationStore
	notifier      otp.Notifier
	recorder      audit.Recorder
	index         search.UserIndex
	store         storage.ObjectStore
	urlExpiry     time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

func NewProfileService(d Deps) *ProfileService {
	return &ProfileService{
		users:         d.Users,
		friendships:   d.Friendships,
		posts:         d.Posts,
		comments:      d.Comments,
		reacts:        d.Reacts,
		conversations: d.Conversations,
		messages:      d.Messages,
		cipher:        d.Cipher,
		otp:           d.OTP,
		revocations:   d.Revocations,
		notifier:      d.Notifier,
		recorder:      d.Audit,
		index:         d.Search,
		store:         d.Storage,
		urlExpiry:     d.SignedURLExpiry,
		logger:        d.Logger,
		now:           time.Now,
	}
}

// SendFriendRequest keeps at most one friendship per pair. A rejected one is
// replaced by the new pending request.
func (s *ProfileService) SendFriendRequest(ctx context.Context, me *models.User, targetID string) error {
	if targetID == me.ID {
		return apperror.BadRequest("You can't add yourself as a friend")
	}
	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return missing(err, "Invalid User ID")
	}
	if target.HasBlocked(me.ID) {
		return apperror.BadRequest("You cannot send friend request to this user")
	}
	if me.HasBlocked(target.ID) {
		return apperror.BadRequest("You have blocked this user, unblock to send friend request")
	}

	existing, err := s.friendships.FindBetween(ctx, me.ID, target.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return fmt.Errorf("lookup friendship: %w", err)
	case existing.Status == models.FriendshipAccepted:
		return apperror.BadRequest("You are already friends")
	case existing.Status == models.FriendshipPending && existing.RequestFromID == target.ID:
		return apperror.BadRequest("This user has already sent you a friend request, please respond to it.")
	case existing.Status == models.FriendshipPending:
		return apperror.BadRequest("You have already sent a friend request to this user.")
	default:
		if err := s.friendships.Delete(ctx, existing.ID); err != nil {
			return fmt.Errorf("drop rejected friendship: %w", err)
		}
	}

	now := s.now().UTC()
	err = s.friendships.Create(ctx, &models.Friendship{
		ID:            uuid.NewString(),
		RequestFromID: me.ID,
		RequestToID:   target.ID,
		Status:        models.FriendshipPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("create friendship: %w", err)
	}
	return nil
}

func (s *ProfileService) RespondFriendRequest(ctx context.Context, meID string, req *RespondFriendRequest) error {
	f, err := s.friendships.FindDirected(ctx, req.FriendID, meID, models.FriendshipPending)
	if err != nil {
		return missing(err, "No Friend Request Found For This User")
	}
	if err := s.friendships.UpdateStatus(ctx, f.ID, req.Status); err != nil {
		return fmt.Errorf("update friendship: %w", err)
	}
	return nil
}

func (s *ProfileService) RemoveFriend(ctx context.Context, meID, friendID string) error {
	f, err := s.friendships.FindBetween(ctx, meID, friendID, models.FriendshipAccepted)
	if err != nil {
		return missing(err, "No FriendShip Found For This User")
	}
	if err := s.friendships.Delete(ctx, f.ID); err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

// FriendsAndGroups lists the other side of each friendship with status and
// the group conversations meID belongs to.
func (s *ProfileService) FriendsAndGroups(ctx context.Context, meID string, status models.FriendshipStatus) (*FriendsAndGroups, error) {
	switch status {
	case "":
		status = models.FriendshipAccepted
	case models.FriendshipAccepted, models.FriendshipPending, models.FriendshipRejected:
	default:
		return nil, apperror.BadRequest("Invalid friendship status", apperror.Context{"invalidData": status})
	}

	var (
		friends []models.User
		groups  []models.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.friendships.ListForUser(gctx, meID, status)
		if err != nil {
			return fmt.Errorf("list friendships: %w", err)
		}
		ids := make([]string, 0, len(list))
		for _, f := range list {
			ids = append(ids, f.Other(meID))
		}
		if len(ids) == 0 {
			return nil
		}
		friends, err = s.users.FindByIDs(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = s.conversations.ListGroupsForMember(gctx, meID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if friends == nil {
		friends = []models.User{}
	}
	if groups == nil {
		groups = []models.Conversation{}
	}
	return &FriendsAndGroups{Friends: friends, Groups: groups}, nil
}

// GetProfile decrypts the phone number and signs the media URLs concurrently.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, missing(err, "Invalid User ID")
	}
	p := &Profile{User: user}

	g, gctx := errgroup.WithContext(ctx)
	if user.PhoneEncrypted != nil {
		g.Go(func() error {
			phone, err := s.cipher.DecryptField(gctx, user.PhoneEncrypted)
			if err != nil {
				return fmt.Errorf("decrypt phone: %w", err)
			}
			user.PhoneNumber = phone
			return nil
		})
	}
	if user.ProfileImage != "" {
		g.Go(func() error {
			var err error
			p.ProfileImageURL, err = s.store.SignedURL(gctx, user.ProfileImage, s.urlExpiry)
			return err
		})
	}
	if user.CoverPic != "" {
		g.Go(func() error {
			var err error
			p.CoverPicURL, err = s.store.SignedURL(gctx, user.CoverPic, s.urlExpiry)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileService) ListProfiles(ctx context.Context, p pagination.Params) (*pagination.Page[models.User], error) {
	return s.users.List(ctx, p.Normalize())
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*models.User, error) {
	if req.empty() {
		return nil, apperror.BadRequest("At least one field must be provided for update")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, missing(err, "Invalid User ID")
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Gender != nil {
		user.Gender = models.Gender(*req.Gender)
	}
	if req.DOB != nil {
		dob, err := ParseDOB(*req.DOB)
		if err != nil {
			return nil, apperror.BadRequest("Invalid date of birth")
		}
		user.DOB = &dob
	}
	if req.PhoneNumber != nil {
		enc, err := s.cipher.EncryptField(ctx, *req.PhoneNumber)
		if err != nil {
			return nil, fmt.Errorf("encrypt phone: %w", err)
		}
		user.PhoneEncrypted = enc
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if req.FirstName != nil || req.LastName != nil {
		indexUser(ctx, s.index, s.logger, user)
	}
	return user, nil
}

// DeleteProfile removes the user and everything hanging off it. Documents go
// first, then blobs, which are best effort.
func (s *ProfileService) DeleteProfile(ctx context.Context, p *token.Principal) error {
	user := p.User
	blobs, err := s.deleteOwnedData(ctx, user)
	if err != nil {
		s.logger.Error("Failed to delete profile", util.String("user_id", user.ID), util.ErrorField(err))
		return apperror.BadRequest("Error deleting profile. Please try again.")
	}

	if user.ProfileImage != "" {
		blobs = append(blobs, user.ProfileImage)
	}
	if user.CoverPic != "" {
		blobs = append(blobs, user.CoverPic)
	}
	deleteBlobs(ctx, s.store, s.logger, blobs)

	if err := s.index.Remove(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to remove user from search index", util.String("user_id", user.ID), util.ErrorField(err))
	}
	if err := s.revocations.Revoke(ctx, token.Revocation{AccessTokenID: p.TokenID(), ExpiresAt: p.Claims.ExpiresAtTime()}); err != nil {
		s.logger.Warn("Failed to revoke token of deleted user", util.String("user_id", user.ID), util.ErrorField(err))
	}

	s.logger.Info("Profile deleted", util.String("user_id", user.ID), util.Int("blobs", len(blobs)))
	return nil
}

// deleteOwnedData deletes the user's documents and returns the blob keys they
// referenced.
func (s *ProfileService) deleteOwnedData(ctx context.Context, user *models.User) ([]string, error) {
	var blobs []string

	posts, err := s.posts.FindAllByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	postIDs := make([]string, 0, len(posts))
	for _, post := range posts {
		postIDs = append(postIDs, post.ID)
		blobs = append(blobs, post.Attachments...)
	}

	onPosts, err := commentTree(ctx, s.comments, models.RefPost, postIDs)
	if err != nil {
		return nil, err
	}
	own, err := s.comments.FindAllByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	ownIDs := make([]string, 0, len(own))
	for _, c := range own {
		ownIDs = append(ownIDs, c.ID)
	}
	replies, err := commentTree(ctx, s.comments, models.RefComment, ownIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var commentIDs []string
	for _, list := range [][]models.Comment{onPosts, own, replies} {
		for _, c := range list {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			commentIDs = append(commentIDs, c.ID)
			if c.Attachment != "" {
				blobs = append(blobs, c.Attachment)
			}
		}
	}

	if _, err := s.reacts.DeleteByPosts(ctx, postIDs); err != nil {
		return nil, fmt.Errorf("delete reacts on posts: %w", err)
	}
	if _, err := s.reacts.DeleteByUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("delete reacts: %w", err)
	}
	if _, err := s.comments.DeleteMany(ctx, commentIDs); err != nil {
		return nil, fmt.Errorf("delete comments: %w", err)
	}
	if _, err := s.posts.DeleteByOwner(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("delete posts: %w", err)
	}

	sent, err := s.messages.DeleteBySender(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}
	for _, m := range sent {
		blobs = append(blobs, m.Attachments...)
	}
	if _, err := s.conversations.DeleteWithMember(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("delete conversations: %w", err)
	}
	if _, err := s.friendships.DeleteInvolving(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("delete friendships: %w", err)
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	return blobs, nil
}

// UploadImage stores a profile or cover picture and drops the one it replaces.
func (s *ProfileService) UploadImage(ctx context.Context, user *models.User, slot ImageSlot, f storage.File) (*storage.Object, error) {
	obj, err := s.store.Upload(ctx, f, profilePrefix(user.ID))
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	var old string
	switch slot {
	case SlotCover:
		old, user.CoverPic = user.CoverPic, obj.Key
	default:
		old, user.ProfileImage = user.ProfileImage, obj.Key
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		deleteBlobs(ctx, s.store, s.logger, []string{obj.Key})
		return nil, fmt.Errorf("update user: %w", err)
	}
	if old != "" {
		deleteBlobs(ctx, s.store, s.logger, []string{old})
	}
	return &obj, nil
}

func (s *ProfileService) UploadLargeFile(ctx context.Context, userID string, f storage.File) (*storage.Object, error) {
	obj, err := s.store.UploadLarge(ctx, f, largePrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("upload large file: %w", err)
	}
	return &obj, nil
}

// ownsKey reports whether key was stored under prefix.
func ownsKey(key, prefix string) bool {
	return strings.HasPrefix(key, prefix+"/") || strings.Contains(key, "/"+prefix+"/")
}

// RenewSignedURL signs key again after checking it belongs to user.
func (s *ProfileService) RenewSignedURL(ctx context.Context, user *models.User, req *SignedURLRequest) (string, error) {
	if req.Key == "" || req.KeyType == "" {
		return "", apperror.BadRequest("Key and keyType are required")
	}
	switch req.KeyType {
	case KeyProfileImage:
		if req.Key != user.ProfileImage {
			return "", apperror.BadRequest("Invalid profile image key for this user")
		}
	case KeyCoverImage:
		if req.Key != user.CoverPic {
			return "", apperror.BadRequest("Invalid cover image key for this user")
		}
	case KeyPostImage:
		if !ownsKey(req.Key, postPrefix(user.ID)) {
			return "", apperror.BadRequest("Invalid post image key for this user")
		}
	case KeyCommentImage:
		if !ownsKey(req.Key, commentPrefix(user.ID)) {
			return "", apperror.BadRequest("Invalid comment image key for this user")
		}
	default:
		return "", apperror.BadRequest("Invalid keyType", apperror.Context{"invalidData": req.KeyType})
	}
	return s.store.SignedURL(ctx, req.Key, s.urlExpiry)
}

// CreateGroup creates a group conversation of me and members. Every member
// must be a friend, and nobody may have blocked the other.
func (s *ProfileService) CreateGroup(ctx context.Context, me *models.User, req *CreateGroupRequest) (*models.Conversation, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.BadRequest("Group name is required")
	}
	if len(req.Members) < 2 {
		return nil, apperror.BadRequest("At least two members are required")
	}

	members := []string{me.ID}
	for _, id := range req.Members {
		if me.HasBlocked(id) {
			return nil, apperror.BadRequest("You cannot add blocked users to the group")
		}
		if id == me.ID {
			return nil, apperror.BadRequest("You cannot add yourself to the group")
		}
		member, err := s.users.FindByID(ctx, id)
		if err != nil {
			return nil, missing(err, "Invalid Member ID")
		}
		if member.HasBlocked(me.ID) {
			return nil, apperror.BadRequest(member.FirstName + " has blocked you")
		}
		_, err = s.friendships.FindBetween(ctx, me.ID, id, models.FriendshipAccepted)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.BadRequest("You can only add friends to the group. " + member.FirstName + " is not your friend.")
		}
		if err != nil {
			return nil, fmt.Errorf("lookup friendship: %w", err)
		}
		if !containsID(members, id) {
			members = append(members, id)
		}
	}

	now := s.now().UTC()
	group := &models.Conversation{
		ID:        uuid.NewString(),
		Type:      models.ConversationGroup,
		Members:   members,
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

// SearchUsers hides users who blocked me, and me.
func (s *ProfileService) SearchUsers(ctx context.Context, me *models.User, name string) ([]models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.BadRequest("Please provide a name to search for")
	}
	if util.ContainsSuspicious(name) {
		return nil, apperror.BadRequest("Invalid search query")
	}
	found, err := s.index.Search(ctx, name, me.ID, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	out := make([]models.User, 0, len(found))
	for _, u := range found {
		if u.ID != me.ID && !u.HasBlocked(me.ID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *ProfileService) BlockUser(ctx context.Context, me *models.User, targetID string) error {
	if targetID == me.ID {
		return apperror.BadRequest("You can't block yourself")
	}
	if me.HasBlocked(targetID) {
		return apperror.BadRequest("You have already blocked this user")
	}
	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		return missing(err, "Invalid User ID")
	}

	me.BlockList = append(me.BlockList, targetID)
	me.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, me); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	f, err := s.friendships.FindBetween(ctx, me.ID, targetID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return fmt.Errorf("lookup friendship: %w", err)
	default:
		if err := s.friendships.Delete(ctx, f.ID); err != nil {
			return fmt.Errorf("delete friendship: %w", err)
		}
	}
	return nil
}

func (s *ProfileService) UnblockUser(ctx context.Context, me *models.User, targetID string) error {
	if !me.HasBlocked(targetID) {
		return apperror.BadRequest("This user is not in your block list")
	}
	me.BlockList = removeID(me.BlockList, targetID)
	me.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, me); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *ProfileService) BlockedUsers(ctx context.Context, me *models.User) ([]models.User, error) {
	if len(me.BlockList) == 0 {
		return []models.User{}, nil
	}
	return s.users.FindByIDs(ctx, me.BlockList)
}

func (s *ProfileService) ResendVerifyOTP(ctx context.Context, user *models.User) error {
	if user.IsEmailVerified {
		return apperror.BadRequest("Email is already verified")
	}
	return s.otp.IssueOrReject(ctx, user, models.OTPVerify, s.users.Update)
}

func (s *ProfileService) ResendResetOTP(ctx context.Context, req *ResendResetRequest) error {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return missing(err, "Invalid Email")
	}
	// Social accounts have no password to reset.
	if user.Provider != models.ProviderLocal && user.Provider != "" {
		return apperror.BadRequest("User with this email does not exist or is registered with a social provider")
	}
	return s.otp.IssueOrReject(ctx, user, models.OTPReset, s.users.Update)
}

// UpdateEmail starts an email change by sending a change-email code to the
// current address.
func (s *ProfileService) UpdateEmail(ctx context.Context, user *models.User) error {
	return s.otp.IssueOrReject(ctx, user, models.OTPChangeEmail, s.users.Update)
}

// ChangeEmail switches to the new address once the change-email code checks
// out. The new address starts unverified and gets its own verify code.
func (s *ProfileService) ChangeEmail(ctx context.Context, user *models.User, req *ChangeEmailRequest) error {
	newEmail := strings.TrimSpace(req.NewEmail)
	if strings.EqualFold(newEmail, user.Email) {
		return apperror.BadRequest("New email must be different from current")
	}
	if _, err := s.users.FindByEmail(ctx, newEmail); err == nil {
		return apperror.BadRequest("Email is already in use")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}

	res := s.otp.Check(user, models.OTPChangeEmail, req.OTP)
	if !res.Valid {
		return otpFailure(ctx, s.users, s.recorder, user, res)
	}

	user.Email = newEmail
	user.IsEmailVerified = false
	user.RemoveOTPs(models.OTPVerify, models.OTPChangeEmail)
	user.UpdatedAt = s.now().UTC()

	err := s.otp.IssueOrReject(ctx, user, models.OTPVerify, s.users.Update)
	if errors.Is(err, repository.ErrDuplicate) {
		return apperror.BadRequest("Email is already in use")
	}
	return err
}

// DeactivateAccount flags the account and revokes the caller's access token.
// Logging in again reactivates it.
func (s *ProfileService) DeactivateAccount(ctx context.Context, p *token.Principal) error {
	user, err := s.users.FindByID(ctx, p.User.ID)
	if err != nil {
		return missing(err, "Invalid User")
	}
	if user.Deactivation.Deactivated {
		return apperror.BadRequest("Account is already deactivated")
	}

	now := s.now().UTC()
	user.Deactivation = models.Deactivation{Deactivated: true, DeactivatedAt: &now}
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	err = s.revocations.Revoke(ctx, token.Revocation{AccessTokenID: p.TokenID(), ExpiresAt: p.Claims.ExpiresAtTime()})
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	s.notifier.Notify(ctx, user.Email, mailer.KindAccountDeactivated, user.FullName(), "")
	record(ctx, s.recorder, models.EventAccountDeactivated, user.ID, p.TokenID())
	return nil
}
