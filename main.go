package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aperture147/svgc/codec"
	"github.com/aperture147/svgc/compressor"
	"github.com/aperture147/svgc/config"
	"github.com/aperture147/svgc/processor"
	"github.com/aperture147/svgc/router"
	"github.com/aperture147/svgc/storage"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func newCodec(ctx context.Context, cfg *config.Config) compressor.Recompressor {
	c := cfg.Compression
	switch c.Codec {
	case config.CodecLilliput:
		p := processor.NewImageProcessor(ctx, processor.ImageProcessorOptions{
			FitSize:  c.MaxDimension,
			Routines: cfg.Routines,
		})
		p.Start()
		return p
	case config.CodecMagick:
		return codec.NewMagick(c.MagickPath, c.MaxDimension)
	default:
		return codec.NewImaging(c.MaxDimension)
	}
}

func newStorage(cfg *config.Config) storage.Storage {
	if cfg.Storage.Kind == config.StorageS3 {
		return storage.NewS3Storage(cfg.Storage.Bucket, cfg.Storage.Path)
	}
	return storage.NewFileSystemStorage(cfg.Storage.Path)
}

func newCache(ctx context.Context, cfg *config.Config) storage.Cache {
	if cfg.Redis == nil {
		return storage.NoCache{}
	}
	cache := storage.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := cache.Ping(ctx); err != nil {
		log.Printf("redis unreachable, continuing without cache: %v\n", err)
		closeCache(cache)
		return storage.NoCache{}
	}
	return cache
}

// closeCache releases caches holding a connection, such as RedisCache.
func closeCache(cache storage.Cache) {
	closer, ok := cache.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Printf("cache close failed: %v\n", err)
	}
}

func main() {
	configFile := flag.String("config", "config.json", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalln("config:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := newCache(ctx, cfg)

	svgRouter, err := router.NewSvgRouter(router.SvgRouterSetting{
		Setting: router.Setting{
			Context: ctx,
			Storage: newStorage(cfg),
			Cache:   cache,
			Path:    cfg.Path,
			CDNHost: cfg.CDNHost,
		},
		MaxFileSize: cfg.MaxUploadMB,
		Timeout:     time.Duration(cfg.RequestTimeout) * time.Second,
		CacheTTL: func() time.Duration {
			if cfg.Redis == nil {
				return 0
			}
			return time.Duration(cfg.Redis.TTLMinutes) * time.Minute
		}(),
		Codec:     newCodec(ctx, cfg),
		CodecName: cfg.Compression.Codec,
		Routines:  cfg.Routines,
		Token:     cfg.AuthToken,
		Defaults: processor.SvgOptions{
			Compressor: cfg.CompressorOptions(),
			Minify:     cfg.Compression.Minify,
			Strict:     cfg.Compression.Strict,
		},
	})
	if err != nil {
		log.Fatalln("router:", err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		okJson := "{\"status\": \"ok\"}"
		fmt.Fprint(w, okJson)
	})
	r.PathPrefix(cfg.Path).Handler(svgRouter)

	allowedHeaders := handlers.AllowedHeaders([]string{"Authorization", "Content-Type"})
	allowedMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST"})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handlers.CORS(allowedHeaders, allowedMethods)(r),
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalln("listen:", err)
		}
	}()

	log.Printf("server started, listening on %s\n", cfg.Addr)

	<-done
	log.Print("stopping server")
	stopCtx, cancel2 := context.WithTimeout(ctx, 30*time.Second)
	defer cancel2()

	if err := srv.Shutdown(stopCtx); err != nil {
		log.Println("server was not gracefully shutdown, terminated")
	}

	closeCache(cache)
	log.Println("server was gracefully stopped")
}
