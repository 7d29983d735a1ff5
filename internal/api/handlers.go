package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/samber/lo"

	"dmchat/internal/chat"
	"dmchat/internal/database"
	"dmchat/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
	Gender   string `json:"gender"`
}

type SendMessageRequest struct {
	ReceiverId int    `json:"receiver_id" validate:"required"`
	Text       string `json:"text" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *ChatApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *ChatApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		errResp := NewValidationError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: pwdHash,
		Gender:       req.Gender,
		Image:        defaultAvatarPath,
	}

	newUser, err := s.db.CreateUser(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:        newUser.Id,
		Name:      newUser.Name,
		Email:     newUser.Email,
		Gender:    newUser.Gender,
		Image:     newUser.Image,
		CreatedAt: newUser.CreatedAt,
		UpdatedAt: newUser.UpdatedAt,
	})
}

func (s *ChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(lr); err != nil {
		errResp := NewValidationError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetUserByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			// an unknown email and a bad password are indistinguishable
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	identity := types.Identity{
		Id:    dbUser.Id,
		Name:  dbUser.Name,
		Email: dbUser.Email,
	}

	token, err := s.createToken(identity, defaultTokenExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, LoginResponse{Token: token})
}

// validateToken lets clients check credential freshness on load. The auth
// middleware has already verified the token by the time this runs.
func (s *ChatApp) validateToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, identity)
}

func (s *ChatApp) getProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(identity.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:        user.Id,
		Name:      user.Name,
		Email:     user.Email,
		Gender:    user.Gender,
		Image:     user.Image,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
}

func (s *ChatApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	curUser, err := s.db.GetUserById(identity.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	gender := r.FormValue("gender")
	if gender == "" {
		gender = curUser.Gender
	}

	// an omitted password keeps the current one
	pwdHash := curUser.PasswordHash
	if passwd := r.FormValue("password"); passwd != "" {
		pwdHash, err = hashPassword(passwd)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	image := curUser.Image
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()

		newImage, err := s.saveAvatar(file, header.Filename)
		if err != nil {
			s.log.Println("save avatar:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if err := s.removeAvatar(curUser.Image); err != nil {
			s.log.Println("remove old avatar:", err)
		}

		image = newImage
	}

	params := database.UpdateUserParams{
		UserId:       curUser.Id,
		Name:         name,
		PasswordHash: pwdHash,
		Gender:       gender,
		Image:        image,
	}

	dbUser, err := s.db.UpdateUser(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:        dbUser.Id,
		Name:      dbUser.Name,
		Email:     dbUser.Email,
		Gender:    dbUser.Gender,
		Image:     dbUser.Image,
		CreatedAt: dbUser.CreatedAt,
		UpdatedAt: dbUser.UpdatedAt,
	})
}

func (s *ChatApp) getAllUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUsers, err := s.db.ListUsersExcept(identity.Id)
	if err != nil {
		s.log.Println("list users:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := lo.Map(dbUsers, func(u database.User, _ int) types.User {
		return types.User{
			Id:    u.Id,
			Name:  u.Name,
			Image: u.Image,
		}
	})

	s.writeJson(w, http.StatusOK, users)
}

func (s *ChatApp) getUserDetails(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(identity.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:    user.Id,
		Name:  user.Name,
		Image: user.Image,
	})
}

// sendMessage accepts a message for the authenticated caller. The sender is
// always the verified identity; any sender field a client might include in
// the body has no effect.
func (s *ChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		errResp := NewValidationError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.chat.Send(identity, req.ReceiverId, req.Text)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, chat.ErrEmptyText) {
			errResp = NewValidationError(err)
		} else {
			s.log.Println("send message:", err)
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *ChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	participantId, err := strconv.Atoi(r.PathValue("userId"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.chat.History(identity, participantId)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, chat.ErrForbidden):
			errResp = NewForbiddenError()
		case errors.Is(err, chat.ErrNoMessages):
			errResp = NewNotFoundError()
		default:
			s.log.Println("get messages:", err)
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}
