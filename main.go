package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/browser"
	_ "modernc.org/sqlite"

	"github.com/smartcrop/smartcrop/appconfig"
	"github.com/smartcrop/smartcrop/auth"
	"github.com/smartcrop/smartcrop/catalog"
	"github.com/smartcrop/smartcrop/history"
	"github.com/smartcrop/smartcrop/inference"
	"github.com/smartcrop/smartcrop/modelfetch"
	"github.com/smartcrop/smartcrop/platform"
	"github.com/smartcrop/smartcrop/preprocess"
	"github.com/smartcrop/smartcrop/webutil"
)

//go:embed web/static
var embeddedFS embed.FS

var staticFS fs.FS

func init() {
	sub, err := fs.Sub(embeddedFS, "web/static")
	if err != nil {
		log.Fatalf("failed to carve static subtree: %v", err)
	}
	staticFS = sub
}

// maxUploadBytes caps how much image data a single predict request may carry.
const maxUploadBytes = 20 << 20

// -----------------------------------------------------------------------------
// Dependencies struct to hold shared dependencies
// -----------------------------------------------------------------------------
type Dependencies struct {
	DB     *sql.DB
	Auth   *auth.AuthService
	Store  *history.Store
	Engine *inference.Engine
}

// modelFetchFunc returns the FetchFunc the session manager uses to make the
// model artifact (and, when needed, the onnxruntime shared library)
// available locally.
func modelFetchFunc(cfg appconfig.Config) inference.FetchFunc {
	return func(ctx context.Context) (string, error) {
		if cfg.Model.ORTSharedLibraryPath == "" && os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH") == "" {
			libPath, err := modelfetch.EnsureRuntime(ctx, platform.GetCacheDir(), logProgress("onnxruntime"))
			if err != nil {
				return "", fmt.Errorf("failed to provision onnxruntime: %w", err)
			}
			os.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", libPath)
		}

		destPath := cfg.Model.CachePath
		if _, err := os.Stat(destPath); err == nil {
			return destPath, nil
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return "", fmt.Errorf("failed to create model cache directory: %w", err)
		}

		policy := modelfetch.Policy{
			MaxAttempts: cfg.Model.LoadMaxAttempts,
			Delay:       time.Duration(cfg.Model.LoadRetryDelaySeconds) * time.Second,
		}
		log.Printf("fetching model from %s", cfg.Model.URL)
		if err := modelfetch.FetchWithRetry(ctx, cfg.Model.URL, destPath, policy, logProgress("model")); err != nil {
			return "", err
		}

		if sum, err := modelfetch.Checksum(destPath); err == nil {
			log.Printf("model ready at %s (checksum %s)", destPath, sum)
		}
		return destPath, nil
	}
}

func logProgress(what string) modelfetch.ByteProgressCallback {
	var lastLogged int64
	return func(downloaded, total int64) {
		// One line per ~16 MB keeps the log readable for large artifacts.
		if downloaded-lastLogged < 16<<20 && downloaded != total {
			return
		}
		lastLogged = downloaded
		if total > 0 {
			log.Printf("downloading %s: %s / %s", what, modelfetch.FormatBytes(downloaded), modelfetch.FormatBytes(total))
		} else {
			log.Printf("downloading %s: %s", what, modelfetch.FormatBytes(downloaded))
		}
	}
}

// -----------------------------------------------------------------------------
// Auth handlers
// -----------------------------------------------------------------------------

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func registerHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Use POST", http.StatusMethodNotAllowed)
			return
		}

		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			webutil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		user, err := deps.Auth.Register(req.Email, req.Password)
		if errors.Is(err, auth.ErrUserExists) {
			webutil.WriteError(w, http.StatusConflict, err.Error())
			return
		} else if err != nil {
			webutil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		token, err := deps.Auth.Login(req.Email, req.Password)
		if err != nil {
			log.Printf("post-register login error: %v", err)
			webutil.WriteError(w, http.StatusInternalServerError, "registration succeeded but login failed")
			return
		}

		webutil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
			"user":  user,
			"token": token,
		})
	}
}

func loginHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Use POST", http.StatusMethodNotAllowed)
			return
		}

		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			webutil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		token, err := deps.Auth.Login(req.Email, req.Password)
		if errors.Is(err, auth.ErrInvalidCreds) {
			webutil.WriteError(w, http.StatusUnauthorized, "invalid email or password")
			return
		} else if err != nil {
			log.Printf("login error: %v", err)
			webutil.WriteError(w, http.StatusInternalServerError, "login failed")
			return
		}

		webutil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func accountHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := webutil.ClaimsFrom(r)

		switch r.Method {
		case http.MethodGet:
			user, err := deps.Auth.GetUser(claims.UserID)
			if errors.Is(err, auth.ErrUserNotFound) {
				webutil.WriteError(w, http.StatusNotFound, "account not found")
				return
			} else if err != nil {
				log.Printf("get user error: %v", err)
				webutil.WriteError(w, http.StatusInternalServerError, "failed to load account")
				return
			}
			webutil.WriteJSON(w, http.StatusOK, user)

		case http.MethodDelete:
			if err := deps.Auth.DeleteAccount(claims.UserID); err != nil {
				log.Printf("delete account error: %v", err)
				webutil.WriteError(w, http.StatusInternalServerError, "failed to delete account")
				return
			}
			webutil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})

		default:
			http.Error(w, "Use GET or DELETE", http.StatusMethodNotAllowed)
		}
	}
}

// -----------------------------------------------------------------------------
// Prediction and history handlers
// -----------------------------------------------------------------------------

// readUploadedImage accepts either a multipart form with an "image" part or a
// raw image body, plus an optional scan name.
func readUploadedImage(r *http.Request) (imageBytes []byte, name string, err error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, "", fmt.Errorf("invalid multipart form: %w", err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, "", fmt.Errorf("missing image part: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return nil, "", err
		}
		return data, r.FormValue("name"), nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}
	return data, r.URL.Query().Get("name"), nil
}

func predictHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Use POST", http.StatusMethodNotAllowed)
			return
		}
		claims := webutil.ClaimsFrom(r)

		imageBytes, name, err := readUploadedImage(r)
		if err != nil {
			webutil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(imageBytes) == 0 {
			webutil.WriteError(w, http.StatusBadRequest, "empty image upload")
			return
		}

		preds, err := deps.Engine.Predict(r.Context(), imageBytes)
		switch {
		case errors.Is(err, preprocess.ErrDecode):
			webutil.WriteError(w, http.StatusBadRequest, "uploaded file is not a decodable image")
			return
		case errors.Is(err, inference.ErrModelUnavailable):
			log.Printf("predict: %v", err)
			webutil.WriteError(w, http.StatusServiceUnavailable, "model is not available; try again shortly")
			return
		case err != nil:
			log.Printf("predict error: %v", err)
			webutil.WriteError(w, http.StatusInternalServerError, "inference failed")
			return
		}

		// Store a compressed copy of the upload with the record so history
		// can show what was scanned. Like the save itself, this is best
		// effort and must not lose the diagnosis.
		imageRef, err := history.EncodeImageRef(imageBytes)
		if err != nil {
			log.Printf("failed to encode stored image: %v", err)
		}

		record := history.Assemble(preds[0], name, claims.UserID, imageRef)
		if err := deps.Store.Save(record); err != nil {
			log.Printf("failed to save prediction record: %v", err)
		}

		webutil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"record":      record,
			"predictions": preds,
		})
	}
}

func historyHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := webutil.ClaimsFrom(r)

		switch r.Method {
		case http.MethodGet:
			limit := 0
			if s := r.URL.Query().Get("limit"); s != "" {
				if n, err := strconv.Atoi(s); err == nil {
					limit = n
				}
			}
			records, err := deps.Store.ListForUser(claims.UserID, limit)
			if err != nil {
				log.Printf("history list error: %v", err)
				webutil.WriteError(w, http.StatusInternalServerError, "failed to load history")
				return
			}
			if records == nil {
				records = []history.PredictionRecord{}
			}
			webutil.WriteJSON(w, http.StatusOK, records)

		case http.MethodDelete:
			if err := deps.Store.DeleteAllForUser(claims.UserID); err != nil {
				log.Printf("history clear error: %v", err)
				webutil.WriteError(w, http.StatusInternalServerError, "failed to clear history")
				return
			}
			webutil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})

		default:
			http.Error(w, "Use GET or DELETE", http.StatusMethodNotAllowed)
		}
	}
}

func historyItemHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Use DELETE", http.StatusMethodNotAllowed)
			return
		}
		claims := webutil.ClaimsFrom(r)
		id := r.PathValue("id")

		err := deps.Store.Delete(claims.UserID, id)
		if errors.Is(err, history.ErrRecordNotFound) {
			webutil.WriteError(w, http.StatusNotFound, "record not found")
			return
		} else if err != nil {
			log.Printf("history delete error: %v", err)
			webutil.WriteError(w, http.StatusInternalServerError, "failed to delete record")
			return
		}
		webutil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

func labelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Use GET", http.StatusMethodNotAllowed)
			return
		}
		type entry struct {
			Label catalog.ClassLabel `json:"label"`
			Name  string             `json:"name"`
		}
		entries := make([]entry, 0, len(catalog.ID2Label))
		for _, label := range catalog.ID2Label {
			entries = append(entries, entry{Label: label, Name: catalog.Lookup(label).Name})
		}
		webutil.WriteJSON(w, http.StatusOK, entries)
	}
}

func healthHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Use GET", http.StatusMethodNotAllowed)
			return
		}
		webutil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"model":  deps.Engine.Manager().State().String(),
		})
	}
}

// redactConfig strips server-side secrets before a config response.
func redactConfig(cfg appconfig.Config) map[string]interface{} {
	return map[string]interface{}{
		"dbPath":     cfg.DBPath,
		"listenAddr": cfg.ListenAddr,
		"model": map[string]interface{}{
			"url":                   cfg.Model.URL,
			"cachePath":             cfg.Model.CachePath,
			"ortSharedLibraryPath":  cfg.Model.ORTSharedLibraryPath,
			"inputName":             cfg.Model.InputName,
			"outputName":            cfg.Model.OutputName,
			"loadMaxAttempts":       cfg.Model.LoadMaxAttempts,
			"loadRetryDelaySeconds": cfg.Model.LoadRetryDelaySeconds,
		},
	}
}

func configHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			webutil.WriteJSON(w, http.StatusOK, redactConfig(appconfig.Get()))

		case http.MethodPost:
			// Overlay the posted fields on the current config. Model and
			// listener changes take effect on restart.
			cfg := appconfig.Get()
			if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
				webutil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			if _, err := appconfig.Save(cfg); err != nil {
				log.Printf("config save error: %v", err)
				webutil.WriteError(w, http.StatusInternalServerError, "failed to save config")
				return
			}
			webutil.WriteJSON(w, http.StatusOK, redactConfig(cfg))

		default:
			http.Error(w, "Use GET or POST", http.StatusMethodNotAllowed)
		}
	}
}

// -----------------------------------------------------------------------------
// Startup
// -----------------------------------------------------------------------------

func main() {
	openBrowser := flag.Bool("open", true, "open the web UI in a browser on startup")
	flag.Parse()

	cfg, cfgPath, err := appconfig.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("using config at %s", cfgPath)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := auth.InitializeSchema(db); err != nil {
		log.Fatalf("failed to initialize auth schema: %v", err)
	}
	if err := history.InitializeSchema(db); err != nil {
		log.Fatalf("failed to initialize history schema: %v", err)
	}

	manager := inference.NewManager(inference.ORTBackend{}, modelFetchFunc(cfg), inference.SessionOptions{
		InputName:            cfg.Model.InputName,
		OutputName:           cfg.Model.OutputName,
		ORTSharedLibraryPath: cfg.Model.ORTSharedLibraryPath,
		NumClasses:           catalog.NumClasses,
	})
	defer manager.Close()

	deps := &Dependencies{
		DB:     db,
		Auth:   auth.NewAuthService(db, cfg.JWTSecret),
		Store:  history.NewStore(db),
		Engine: inference.NewEngine(manager),
	}

	// Warm the model so the first scan does not wait for the download.
	manager.Preload(context.Background())

	// ––– routes –––
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", webutil.ApplyMiddlewares(registerHandler(deps)))
	mux.HandleFunc("/api/auth/login", webutil.ApplyMiddlewares(loginHandler(deps)))
	mux.HandleFunc("/api/auth/account", webutil.ApplyMiddlewares(webutil.RequireAuth(deps.Auth, accountHandler(deps))))
	mux.HandleFunc("/api/predict", webutil.ApplyMiddlewares(webutil.RequireAuth(deps.Auth, predictHandler(deps))))
	mux.HandleFunc("/api/history", webutil.ApplyMiddlewares(webutil.RequireAuth(deps.Auth, historyHandler(deps))))
	mux.HandleFunc("/api/history/{id}", webutil.ApplyMiddlewares(webutil.RequireAuth(deps.Auth, historyItemHandler(deps))))
	mux.HandleFunc("/api/labels", webutil.ApplyMiddlewares(labelsHandler()))
	mux.HandleFunc("/health", healthHandler(deps))
	mux.HandleFunc("/config", webutil.ApplyMiddlewares(configHandler()))

	// Serve embedded static files
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("%s listening on http://%s", platform.AppDisplayName, cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("smartcrop-server: %v", err)
		}
	}()

	if *openBrowser {
		_ = browser.OpenURL("http://" + cfg.ListenAddr + "/")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down SmartCrop server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server shutdown complete")
	}
}
