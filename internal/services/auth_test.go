package services_test

import (
	"context"
	"testing"
	"time"

	"task-manager/api/internal/models"
	"task-manager/api/internal/services"

	"github.com/stretchr/testify/suite"
)

type AuthServiceTestSuite struct {
	suite.Suite
	users    *fakeUserStore
	tokens   *services.TokenManager
	register *services.RegisterServiceImpl
	auth     *services.AuthServiceImpl
	ctx      context.Context
}

func (s *AuthServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.users = newFakeUserStore()
	s.tokens = services.NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	s.register = services.NewRegisterService(s.users)
	s.auth = services.NewAuthService(s.users, s.tokens)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func (s *AuthServiceTestSuite) signup(email, password string) *models.User {
	user, err := s.register.RegisterUser(s.ctx, models.UserCreate{Email: email, Password: password})
	s.Require().NoError(err)
	return user
}

func (s *AuthServiceTestSuite) TestRegisterUser_StoresHashAndNormalizedEmail() {
	user := s.signup("  Alice@Example.COM ", "longpassword")

	s.False(user.ID.IsZero())
	s.Equal("alice@example.com", user.Email)
	s.NotEqual("longpassword", user.PasswordHash)
	s.True(services.VerifyPassword("longpassword", user.PasswordHash))

	stored, err := s.users.FindUserByEmail(s.ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(user.ID, stored.ID)
}

func (s *AuthServiceTestSuite) TestRegisterUser_DuplicateEmail() {
	s.signup("a@b.co", "longpassword")

	_, err := s.register.RegisterUser(s.ctx, models.UserCreate{Email: "A@B.CO", Password: "otherpassword"})
	s.ErrorIs(err, services.ErrEmailTaken)
	s.Len(s.users.users, 1)
}

func (s *AuthServiceTestSuite) TestRegisterUser_UniqueIndexRace() {
	s.users.dupOnCreate = true

	_, err := s.register.RegisterUser(s.ctx, models.UserCreate{Email: "race@b.co", Password: "longpassword"})
	s.ErrorIs(err, services.ErrEmailTaken)
}

func (s *AuthServiceTestSuite) TestRegisterUser_StoreFailure() {
	s.users.fail = true

	_, err := s.register.RegisterUser(s.ctx, models.UserCreate{Email: "x@b.co", Password: "longpassword"})
	s.Error(err)
	s.NotErrorIs(err, services.ErrEmailTaken)
}

func (s *AuthServiceTestSuite) TestLoginUser_Success() {
	user := s.signup("a@b.co", "longpassword")

	pair, err := s.auth.LoginUser(s.ctx, "A@b.co", "longpassword")
	s.Require().NoError(err)

	s.NotEmpty(pair.AccessToken)
	s.NotEmpty(pair.RefreshToken)
	s.NotEqual(pair.AccessToken, pair.RefreshToken)
	s.Equal(int64(900), pair.ExpiresIn)

	sub, err := s.tokens.Verify(pair.AccessToken, services.TokenTypeAccess)
	s.Require().NoError(err)
	s.Equal(user.ID.Hex(), sub)

	sub, err = s.tokens.Verify(pair.RefreshToken, services.TokenTypeRefresh)
	s.Require().NoError(err)
	s.Equal(user.ID.Hex(), sub)
}

func (s *AuthServiceTestSuite) TestLoginUser_FailuresAreIndistinguishable() {
	s.signup("a@b.co", "longpassword")

	_, wrongPassword := s.auth.LoginUser(s.ctx, "a@b.co", "wrongpassword")
	_, unknownEmail := s.auth.LoginUser(s.ctx, "nobody@b.co", "longpassword")

	s.Equal(services.ErrInvalidCredentials, wrongPassword)
	s.Equal(services.ErrInvalidCredentials, unknownEmail)
	s.Equal(wrongPassword.Error(), unknownEmail.Error())
}

func (s *AuthServiceTestSuite) TestLoginUser_StoreFailure() {
	s.users.fail = true

	_, err := s.auth.LoginUser(s.ctx, "a@b.co", "longpassword")
	s.Error(err)
	s.NotErrorIs(err, services.ErrInvalidCredentials)
}

func (s *AuthServiceTestSuite) TestRefreshToken_Success() {
	user := s.signup("a@b.co", "longpassword")
	pair, err := s.auth.LoginUser(s.ctx, "a@b.co", "longpassword")
	s.Require().NoError(err)

	access, expiresIn, err := s.auth.RefreshToken(s.ctx, pair.RefreshToken)
	s.Require().NoError(err)
	s.Equal(int64(900), expiresIn)

	sub, err := s.tokens.Verify(access, services.TokenTypeAccess)
	s.Require().NoError(err)
	s.Equal(user.ID.Hex(), sub)
}

func (s *AuthServiceTestSuite) TestRefreshToken_RejectsAccessToken() {
	s.signup("a@b.co", "longpassword")
	pair, err := s.auth.LoginUser(s.ctx, "a@b.co", "longpassword")
	s.Require().NoError(err)

	_, _, err = s.auth.RefreshToken(s.ctx, pair.AccessToken)
	s.ErrorIs(err, services.ErrInvalidToken)
}

func (s *AuthServiceTestSuite) TestRefreshToken_RejectsGarbage() {
	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, _, err := s.auth.RefreshToken(s.ctx, tok)
		s.ErrorIs(err, services.ErrInvalidToken, "token %q", tok)
	}
}

func (s *AuthServiceTestSuite) TestRefreshToken_RejectsExpired() {
	expired, err := s.tokens.Issue("abc", services.TokenTypeRefresh, -time.Second)
	s.Require().NoError(err)

	_, _, err = s.auth.RefreshToken(s.ctx, expired)
	s.ErrorIs(err, services.ErrInvalidToken)
}
