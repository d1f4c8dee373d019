package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/aperture147/svgc/storage"
	"github.com/aperture147/svgc/util"
)

var (
	ErrTimedOut       = errors.New("timed out")
	ErrAddToProcessor = errors.New("cannot add to processor")
)

type PathResponse struct {
	Path string `json:"path"`
	Url  string `json:"url"`
}

func GetResponse(cdnHost, path string) PathResponse {
	return PathResponse{
		Path: path,
		Url:  cdnHost + path,
	}
}

func ServerErrorResponseAndLog(w http.ResponseWriter, msg string, err error) {
	newErr := fmt.Errorf("%s: %w", msg, err)
	log.Println(newErr)
	util.WriteServerErrorResponse(w, newErr)
}

type Setting struct {
	Context context.Context // father context
	Storage storage.Storage // storage component
	Cache   storage.Cache   // processed document cache, may be nil
	Path    string          // router path
	CDNHost string          // prefix of returned urls
}
