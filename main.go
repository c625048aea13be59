package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"storyforge/audio"
	"storyforge/config"
	"storyforge/llm"
	"storyforge/pipeline"
	"storyforge/render"
	"storyforge/script"
	"storyforge/subtitles"
	"storyforge/visuals"
	"storyforge/voice"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	token, err := apiToken()
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.Temp, 0o755); err != nil {
		log.Fatalf("temp dir: %v", err)
	}

	llmClient := llm.New(cfg.Script)

	speech := audio.NewClient(speechEndpoints(), cfg.Speech.Language, log)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := speech.Refresh(ctx); err != nil {
		log.Warnf("speaker catalog unavailable at startup, synthesis will fail until Refresh succeeds: %v", err)
	} else {
		log.Infof("speaker catalog loaded: %d voices", speech.VoiceCount())
	}
	cancel()

	var images pipeline.ImageGenerator
	switch cfg.Image.Provider {
	case "openai":
		images = visuals.NewOpenAIClient()
	default:
		images = visuals.NewDiffusionClient(os.Getenv("DIFFUSION_URL"), cfg.Image, log)
	}

	p := &pipeline.Pipeline{
		Generator: script.NewGenerator(llmClient, script.NewValidator(cfg.Script), cfg.Script, log),
		Assigner:  voice.NewAssigner(nil),
		Scheduler: pipeline.NewScheduler(images, speech, log),
		Prober:    &subtitles.FFProbe{Bin: cfg.Paths.FFprobeBin},
		Assembler: render.NewAssembler(cfg.Paths.FFmpegBin, cfg.Render.FrameSize, log),
		TempRoot:  cfg.Paths.Temp,
		Log:       log,
	}

	srv := &server{pipeline: p, llm: llmClient, images: images, tempRoot: cfg.Paths.Temp, log: log}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	router.GET("/healthz", srv.health)

	authed := router.Group("/", gin.BasicAuth(gin.Accounts{
		cfg.Server.AuthUser: token,
	}))
	authed.POST("/promptToStoryboard", srv.promptToStoryboard)
	authed.POST("/promptToImagePrompt", srv.promptToImagePrompt)
	authed.POST("/promptToImage", srv.promptToImage)

	log.Infof("listening on %s", cfg.Server.Addr)
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// apiToken reads the basic-auth password from the environment. An unset token
// is a startup error: gin.BasicAuth would otherwise accept requests carrying
// an empty password.
func apiToken() (string, error) {
	token := os.Getenv("API_TOKEN")
	if token == "" {
		return "", errors.New("API_TOKEN is not set")
	}
	return token, nil
}

// speechEndpoints expands COQUI_URL_BASE plus the comma-separated
// COQUI_URL_PORTS list into full backend URLs.
func speechEndpoints() []string {
	base := os.Getenv("COQUI_URL_BASE")
	if base == "" {
		base = "http://localhost"
	}
	ports := os.Getenv("COQUI_URL_PORTS")
	if ports == "" {
		ports = "8000"
	}
	var endpoints []string
	for _, port := range strings.Split(ports, ",") {
		port = strings.TrimSpace(port)
		if port == "" {
			continue
		}
		endpoints = append(endpoints, base+":"+port)
	}
	return endpoints
}

// requestLogger tags each request with an id and logs method, path, status and
// latency once the handler returns.
func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Next()
		log.WithFields(logrus.Fields{
			"request": id,
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Millisecond).String(),
		}).Info("request")
	}
}
