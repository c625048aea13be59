package main

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storyforge/llm"
	"storyforge/pipeline"
	"storyforge/types"
	"storyforge/visuals"
	"storyforge/workspace"
)

type server struct {
	pipeline *pipeline.Pipeline
	llm      *llm.Client
	images   pipeline.ImageGenerator
	tempRoot string
	log      *logrus.Logger
}

type promptRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// promptToStoryboard runs the full pipeline and streams the finished MP4 back
// as an attachment. The scratch workspace is removed after the response.
func (s *server) promptToStoryboard(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	result, err := s.pipeline.Run(c.Request.Context(), req.Prompt)
	if err != nil {
		s.renderError(c, err)
		return
	}
	defer result.Workspace.Cleanup()

	c.FileAttachment(result.VideoPath, filepath.Base(result.VideoPath))
}

// promptToImagePrompt expands a terse prompt into a diffusion-ready one.
func (s *server) promptToImagePrompt(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	upscaled, err := s.llm.UpscalePrompt(c.Request.Context(), req.Prompt)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": upscaled})
}

// promptToImage upscales the prompt, renders a single image, and returns it.
func (s *server) promptToImage(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	upscaled, err := s.llm.UpscalePrompt(c.Request.Context(), req.Prompt)
	if err != nil {
		s.renderError(c, err)
		return
	}

	ws, err := workspace.New(s.tempRoot, s.log)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer ws.Cleanup()

	path, err := s.images.Generate(c.Request.Context(), visuals.Request{
		Prompt: upscaled,
		Frame:  0,
		Dir:    ws.Dir,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}

// renderError maps the pipeline's error kinds onto HTTP responses. Generation
// exhaustion and upstream failures are retryable from the client's side, so
// they come back as 502; a muxer failure is a plain 500.
func (s *server) renderError(c *gin.Context, err error) {
	var genErr *types.GenerationError
	var upErr *types.UpstreamError
	var asmErr *types.AssemblyError

	switch {
	case errors.Is(err, types.ErrVoicePoolExhausted):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &genErr):
		s.log.Warnf("script generation exhausted: %v", genErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not produce a valid script, try again or rephrase the prompt"})
	case errors.As(err, &upErr):
		s.log.Errorf("upstream %s failure: %v", upErr.Service, upErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("%s service unavailable", upErr.Service)})
	case errors.As(err, &asmErr):
		s.log.Errorf("assembly failure: %v", asmErr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "video assembly failed"})
	default:
		s.log.Errorf("pipeline failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
