package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
)

// send posts a JSON body with optional cookies and returns the recorder
func (s *HandlersTestSuite) send(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "tt_session" {
			return cookie
		}
	}
	return nil
}

func (s *HandlersTestSuite) register(username string) *httptest.ResponseRecorder {
	return s.send(http.MethodPost, "/api/auth/register", gin.H{
		"email":       username + "@travel.test",
		"username":    username,
		"password":    "correct-horse",
		"displayName": "Nomad",
	})
}

func (s *HandlersTestSuite) TestRegisterSetsSessionCookie() {
	w := s.register("nomad")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	body := decode(w)
	s.Equal(true, body["success"])
	s.NotEmpty(body["token"])

	cookie := sessionCookie(w)
	s.Require().NotNil(cookie)
	s.True(cookie.HttpOnly)

	w = s.send(http.MethodGet, "/api/auth/me", nil, cookie)
	s.Require().Equal(http.StatusOK, w.Code)
	me := decode(w)
	s.Equal("nomad@travel.test", me["email"])
	s.Equal(true, me["hasPassword"])
	s.Equal(false, me["twoFactorEnabled"])
}

func (s *HandlersTestSuite) TestRegisterConflictsAndValidation() {
	s.Require().Equal(http.StatusCreated, s.register("nomad").Code)

	w := s.register("nomad")
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("CONFLICT", decode(w)["code"])

	w = s.send(http.MethodPost, "/api/auth/register", gin.H{
		"email":       "not-an-email",
		"username":    "x y",
		"password":    "short",
		"displayName": "Nomad",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_ERROR", decode(w)["code"])
}

func (s *HandlersTestSuite) TestLoginWithUsernameOrEmail() {
	s.Require().Equal(http.StatusCreated, s.register("nomad").Code)

	for _, login := range []string{"nomad", "NOMAD@travel.test"} {
		w := s.send(http.MethodPost, "/api/auth/login", gin.H{"login": login, "password": "correct-horse"})
		s.Equal(http.StatusOK, w.Code, login)
		s.NotNil(sessionCookie(w), login)
	}

	w := s.send(http.MethodPost, "/api/auth/login", gin.H{"login": "nomad", "password": "wrong-horse"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("UNAUTHORIZED", decode(w)["code"])

	w = s.send(http.MethodPost, "/api/auth/login", gin.H{"login": "ghost", "password": "wrong-horse"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersTestSuite) TestLogoutExpiresCookie() {
	w := s.send(http.MethodPost, "/api/auth/logout", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	cookie := sessionCookie(w)
	s.Require().NotNil(cookie)
	s.True(cookie.MaxAge < 0)
}

func (s *HandlersTestSuite) TestPasswordForgotNeverRevealsAccounts() {
	w := s.send(http.MethodPost, "/api/auth/password/forgot", gin.H{"email": "nobody@travel.test"})
	s.Equal(http.StatusOK, w.Code)

	w = s.send(http.MethodPost, "/api/auth/password/reset", gin.H{"token": "bogus", "password": "another-horse"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestTwoFactorLogin() {
	w := s.register("nomad")
	s.Require().Equal(http.StatusCreated, w.Code)
	cookie := sessionCookie(w)

	w = s.send(http.MethodPost, "/api/auth/2fa/setup", nil, cookie)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	secret := decode(w)["secret"].(string)

	code, err := totp.GenerateCode(secret, time.Now())
	s.Require().NoError(err)
	w = s.send(http.MethodPost, "/api/auth/2fa/enable", gin.H{"code": code}, cookie)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.send(http.MethodPost, "/api/auth/login", gin.H{"login": "nomad", "password": "correct-horse"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("TWO_FACTOR_REQUIRED", decode(w)["code"])
	s.Nil(sessionCookie(w))

	w = s.send(http.MethodPost, "/api/auth/login", gin.H{"login": "nomad", "password": "correct-horse", "code": code})
	s.Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *HandlersTestSuite) TestOAuthCallbackRejectsUnknownState() {
	w := s.send(http.MethodGet, "/api/auth/oauth/google/callback?state=forged&code=abc", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlersTestSuite) TestStreamTokenForSignedInUser() {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/stream-token", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(s.alice))
	s.router.ServeHTTP(w, req)

	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(s.alice.ID, decode(w)["userId"])
}
