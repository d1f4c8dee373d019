package middleware

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/aperture147/svgc/util"
)

type TokenAuthenticator struct {
	// Bearer token, an empty token disables the check
	Token string
}

func NewTokenAuthenticator(token string) TokenAuthenticator {
	if token == "" {
		log.Println("no auth token configured, accepting every request")
	}
	return TokenAuthenticator{
		Token: token,
	}
}

func (t TokenAuthenticator) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") == "" {
			util.WriteForbiddenResponse(w, errors.New("no token provided"))
			return
		}

		rawAuth := strings.Split(r.Header.Get("Authorization"), " ")
		if len(rawAuth) == 2 && rawAuth[0] == "Bearer" &&
			subtle.ConstantTimeCompare([]byte(rawAuth[1]), []byte(t.Token)) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		util.WriteUnauthorizedResponse(w, errors.New("wrong token"))
	})
}
