package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aperture147/svgc/compressor"
	"github.com/aperture147/svgc/processor"
	"github.com/aperture147/svgc/router/middleware"
	"github.com/aperture147/svgc/storage"
	"github.com/aperture147/svgc/util"
	"github.com/gorilla/mux"
)

const (
	SvgFileField  = "svgFile"
	SvgOptionsKey = "options"
)

type SvgRouterSetting struct {
	Setting
	MaxFileSize int           // max upload size in MiB
	Timeout     time.Duration // how long a request waits for its document
	CacheTTL    time.Duration

	Codec     compressor.Recompressor
	CodecName string // part of the cache key, documents differ per codec
	Routines  int
	Token     string
	Defaults  processor.SvgOptions
}

type SvgResponse struct {
	PathResponse
	OriginalSize int  `json:"originalSize"`
	Size         int  `json:"size"`
	Saved        int  `json:"saved"`
	Replaced     int  `json:"replaced"`
	Cached       bool `json:"cached"`
}

// cachedSvg is the cache entry for one processed document.
type cachedSvg struct {
	Buffer   []byte `json:"buffer"`
	Replaced int    `json:"replaced"`
}

func getCached(ctx context.Context, cache storage.Cache, key string) (*cachedSvg, error) {
	raw, err := cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var entry cachedSvg
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return &entry, nil
}

func setCached(ctx context.Context, cache storage.Cache, key string, entry cachedSvg, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return cache.Set(ctx, key, raw, ttl)
}

/*
NewSvgRouter serves uploads of svg (or gzipped svgz) documents. Every
document has its embedded images recompressed, is stored under the md5 of
its input and settings, and the stored path is returned.
*/
func NewSvgRouter(setting SvgRouterSetting) (*mux.Router, error) {
	p, err := processor.NewSvgProcessor(setting.Context, processor.SvgProcessorOptions{
		Routines: setting.Routines,
		Codec:    setting.Codec,
	})
	if err != nil {
		return nil, err
	}
	p.Start()

	cache := setting.Cache
	if cache == nil {
		cache = storage.NoCache{}
	}
	timeout := setting.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	auth := middleware.NewTokenAuthenticator(setting.Token)
	extractor := middleware.NewFileExtractor(setting.MaxFileSize, SvgFileField)
	parser := middleware.NewOptionsParser(setting.Defaults, SvgOptionsKey)

	r := mux.NewRouter()
	r.Use(auth.Verify, extractor.Verify, parser.Decode)

	r.HandleFunc(setting.Path, func(w http.ResponseWriter, r *http.Request) {
		data := middleware.File(r, SvgFileField)
		opts, _ := middleware.Options(r, SvgOptionsKey)

		gzipped := util.IsGzip(data)
		if gzipped {
			plain, err := util.Gunzip(data)
			if err != nil {
				util.WriteBadRequestResponse(w, err)
				return
			}
			data = plain
		}

		hashString := util.GetMd5Key(data, opts.Key(), setting.CodecName)
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := SvgResponse{OriginalSize: len(data)}
		var buf []byte
		entry, err := getCached(ctx, cache, hashString)
		switch {
		case err == nil:
			buf = entry.Buffer
			resp.Replaced = entry.Replaced
			resp.Cached = true
		case !errors.Is(err, storage.ErrCacheMiss):
			log.Printf("cache get failed: %v\n", err)
			fallthrough
		default:
			result, err := p.AddSvg(ctx, data, opts)
			if errors.Is(err, context.DeadlineExceeded) {
				util.WriteTimeoutResponse(w, ErrTimedOut)
				return
			}
			if err != nil {
				ServerErrorResponseAndLog(w, "svg add failed", fmt.Errorf("%w: %v", ErrAddToProcessor, err))
				return
			}
			select {
			case <-ctx.Done():
				util.WriteTimeoutResponse(w, ErrTimedOut)
				return
			case <-result.Done():
			}
			if errors.Is(result.ConvertError, context.DeadlineExceeded) {
				util.WriteTimeoutResponse(w, ErrTimedOut)
				return
			}
			if result.ConvertError != nil {
				util.WriteUnprocessableResponse(w, result.ConvertError)
				return
			}
			buf = result.Buffer
			resp.Replaced = result.Stats.Replaced
			fresh := cachedSvg{Buffer: buf, Replaced: resp.Replaced}
			if err := setCached(ctx, cache, hashString, fresh, setting.CacheTTL); err != nil {
				log.Printf("cache set failed: %v\n", err)
			}
		}
		resp.Size = len(buf)
		resp.Saved = resp.OriginalSize - resp.Size

		fileName := hashString + ".svg"
		if gzipped {
			if buf, err = util.Gzip(buf); err != nil {
				ServerErrorResponseAndLog(w, "svg gzip failed", err)
				return
			}
			fileName = hashString + ".svgz"
		}

		path, err := setting.Storage.Save(fileName, util.SvgMimeType, buf)
		if err != nil {
			ServerErrorResponseAndLog(w, "svg save failed", err)
			return
		}
		resp.PathResponse = GetResponse(setting.CDNHost, path)
		util.WriteOkResponse(w, resp)
	}).Methods(http.MethodPost)

	return r, nil
}
