package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/ironsheep/image-match-mcp/internal/capture"
	"github.com/ironsheep/image-match-mcp/internal/config"
	"github.com/ironsheep/image-match-mcp/internal/imaging"
	"github.com/ironsheep/image-match-mcp/internal/match"
	"github.com/ironsheep/image-match-mcp/internal/overlay"
	"github.com/ironsheep/image-match-mcp/internal/wait"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_find_template").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.logger.Debug("tool completed", "tool", params.Name, "elapsed", time.Since(start))

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// CallTool runs a tool outside the MCP transport. The command-line
// subcommands use it so they share argument handling with tools/call.
func (s *Server) CallTool(ctx context.Context, name string, args interface{}) (interface{}, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	return s.executeTool(ctx, name, raw)
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies configured defaults for optional parameters
//  3. Loads images from cache as needed
//  4. Calls the appropriate imaging/match/wait/overlay function
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_capture_screen":
		return s.handleImageCaptureScreen(ctx, args)

	// Template Authoring
	case "image_crop":
		return s.handleImageCrop(args)
	case "image_list_templates":
		return s.handleImageListTemplates()

	// Template Matching
	case "image_find_template":
		return s.handleImageFindTemplate(ctx, args)
	case "image_find_all_templates":
		return s.handleImageFindAllTemplates(ctx, args)
	case "image_wait_for_template":
		return s.handleImageWaitForTemplate(ctx, args)

	// Debugging
	case "image_annotate_matches":
		return s.handleImageAnnotateMatches(ctx, args)
	case "image_grid_overlay":
		return s.handleImageGridOverlay(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type imageCaptureScreenArgs struct {
	SavePath string `json:"save_path"`
	Display  *int   `json:"display,omitempty"`
}

type captureResult struct {
	Path     string        `json:"path"`
	Display  int           `json:"display"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Displays []displayInfo `json:"displays"`
}

// displayInfo describes one active display in desktop coordinates.
type displayInfo struct {
	Index  int `json:"index"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func newDisplayInfos(bounds []image.Rectangle) []displayInfo {
	infos := make([]displayInfo, len(bounds))
	for i, b := range bounds {
		infos[i] = displayInfo{Index: i, X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}
	}
	return infos
}

func (s *Server) handleImageCaptureScreen(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageCaptureScreenArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.SavePath == "" {
		return nil, fmt.Errorf("save_path is required")
	}
	display := s.cfg.Capture.Display
	if a.Display != nil {
		display = *a.Display
	}

	buf, err := capture.Screen{Display: display, Channels: imaging.RGB}.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if err := imaging.SavePNG(a.SavePath, buf.Image()); err != nil {
		return nil, err
	}
	s.cache.Evict(a.SavePath)

	return &captureResult{
		Path:     a.SavePath,
		Display:  display,
		Width:    buf.Width(),
		Height:   buf.Height(),
		Displays: newDisplayInfos(capture.Displays()),
	}, nil
}

// === Template Authoring Handlers ===

type imageCropArgs struct {
	Path         string  `json:"path"`
	X1           int     `json:"x1"`
	Y1           int     `json:"y1"`
	X2           int     `json:"x2"`
	Y2           int     `json:"y2"`
	Scale        float64 `json:"scale"`
	SavePath     string  `json:"save_path"`
	TemplateName string  `json:"template_name"`
}

type cropResult struct {
	*imaging.CropResult
	Template *config.Template `json:"template,omitempty"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	if a.TemplateName != "" && a.SavePath == "" {
		return nil, fmt.Errorf("template_name requires save_path")
	}
	if a.SavePath != "" && !filepath.IsAbs(a.SavePath) {
		a.SavePath = filepath.Join(s.registry.Dir(), a.SavePath)
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	crop, err := imaging.Crop(img, a.X1, a.Y1, a.X2, a.Y2, a.Scale, a.SavePath)
	if err != nil {
		return nil, err
	}
	result := &cropResult{CropResult: crop}
	if a.SavePath != "" {
		s.cache.Evict(a.SavePath)
	}
	if a.TemplateName != "" {
		tmpl, err := s.registry.Register(config.Template{Name: a.TemplateName, Path: a.SavePath})
		if err != nil {
			return nil, err
		}
		s.logger.Info("registered template", "name", tmpl.Name, "path", tmpl.Path)
		result.Template = &tmpl
	}
	return result, nil
}

type listTemplatesResult struct {
	Count     int               `json:"count"`
	Directory string            `json:"directory"`
	Templates []config.Template `json:"templates"`
}

func (s *Server) handleImageListTemplates() (interface{}, error) {
	templates := s.registry.List()
	return &listTemplatesResult{
		Count:     len(templates),
		Directory: s.registry.Dir(),
		Templates: templates,
	}, nil
}

// === Template Matching Handlers ===

type regionArgs struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// templateArgs are shared by every matching tool.
type templateArgs struct {
	Template     string      `json:"template"`
	TemplatePath string      `json:"template_path"`
	Threshold    float64     `json:"threshold"`
	Region       *regionArgs `json:"region,omitempty"`
}

// resolvedTemplate is a template reference with defaults applied.
type resolvedTemplate struct {
	name      string
	path      string
	threshold float64
	region    *match.Region
}

func (s *Server) resolveTemplate(a templateArgs) (*resolvedTemplate, error) {
	var r resolvedTemplate
	switch {
	case a.Template != "":
		t, ok := s.registry.Get(a.Template)
		if !ok {
			return nil, fmt.Errorf("unknown template %q", a.Template)
		}
		r = resolvedTemplate{name: t.Name, path: t.Path, threshold: t.Threshold, region: t.Region}
	case a.TemplatePath != "":
		r = resolvedTemplate{name: filepath.Base(a.TemplatePath), path: a.TemplatePath, threshold: s.cfg.Match.Threshold}
	default:
		return nil, fmt.Errorf("either template or template_path is required")
	}
	if a.Threshold != 0 {
		r.threshold = a.Threshold
	}
	if a.Region != nil {
		r.region = &match.Region{
			X:      a.Region.X1,
			Y:      a.Region.Y1,
			Width:  a.Region.X2 - a.Region.X1,
			Height: a.Region.Y2 - a.Region.Y1,
		}
	}
	return &r, nil
}

// loadPair loads the template and source buffers with the configured
// channel layout.
func (s *Server) loadPair(tmpl *resolvedTemplate, sourcePath string) (*imaging.PixelBuffer, *imaging.PixelBuffer, error) {
	if sourcePath == "" {
		return nil, nil, fmt.Errorf("path is required")
	}
	t, err := s.cache.LoadBuffer(tmpl.path, s.cfg.Match.Channels)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load template %s: %w", tmpl.name, err)
	}
	src, err := s.cache.LoadBuffer(sourcePath, s.cfg.Match.Channels)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load source: %w", err)
	}
	return t, src, nil
}

// search runs q, restricted to region when one is set. Returned regions
// are always in full-source coordinates.
func (s *Server) search(ctx context.Context, q match.Query, region *match.Region) ([]match.Candidate, error) {
	if region != nil {
		sub, err := cropRegion(q.Source, *region)
		if err != nil {
			return nil, err
		}
		q.Source = sub
	}
	found, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if region != nil {
		for i := range found {
			found[i].Region.X += region.X
			found[i].Region.Y += region.Y
		}
	}
	return found, nil
}

func cropRegion(src *imaging.PixelBuffer, r match.Region) (*imaging.PixelBuffer, error) {
	if !r.Within(src.Width(), src.Height()) {
		return nil, fmt.Errorf("search region (%d,%d) %dx%d outside %dx%d source",
			r.X, r.Y, r.Width, r.Height, src.Width(), src.Height())
	}
	return src.Crop(r.X, r.Y, r.Width, r.Height)
}

// minDistance returns the explicit argument, the configured value, or half
// the template's shorter side.
func (s *Server) minDistance(arg *float64, tmpl *imaging.PixelBuffer) float64 {
	if arg != nil {
		return *arg
	}
	if s.cfg.Match.MinDistance > 0 {
		return s.cfg.Match.MinDistance
	}
	return float64(min(tmpl.Width(), tmpl.Height())) / 2
}

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// matchResult is a candidate as reported to clients.
type matchResult struct {
	Region match.Region `json:"region"`
	Score  float64      `json:"score"`
	Center point        `json:"center"`
}

func newMatchResult(c match.Candidate) matchResult {
	p := c.Region.CenterPoint()
	return matchResult{Region: c.Region, Score: c.Score, Center: point{X: p.X, Y: p.Y}}
}

func newMatchResults(found []match.Candidate) []matchResult {
	results := make([]matchResult, len(found))
	for i, c := range found {
		results[i] = newMatchResult(c)
	}
	return results
}

type imageFindTemplateArgs struct {
	templateArgs
	Path string `json:"path"`
}

type findResult struct {
	Found     bool         `json:"found"`
	Match     *matchResult `json:"match,omitempty"`
	Template  string       `json:"template"`
	Threshold float64      `json:"threshold"`
}

func (s *Server) handleImageFindTemplate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageFindTemplateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	tmpl, err := s.resolveTemplate(a.templateArgs)
	if err != nil {
		return nil, err
	}
	t, src, err := s.loadPair(tmpl, a.Path)
	if err != nil {
		return nil, err
	}

	found, err := s.search(ctx, match.Query{Template: t, Source: src, Threshold: tmpl.threshold, MaxResults: 1}, tmpl.region)
	if err != nil {
		return nil, err
	}

	result := &findResult{Found: len(found) > 0, Template: tmpl.name, Threshold: tmpl.threshold}
	if result.Found {
		m := newMatchResult(found[0])
		result.Match = &m
	}
	return result, nil
}

type imageFindAllTemplatesArgs struct {
	templateArgs
	Path        string   `json:"path"`
	MaxResults  int      `json:"max_results"`
	MinDistance *float64 `json:"min_distance,omitempty"`
}

type findAllResult struct {
	Count       int           `json:"count"`
	Matches     []matchResult `json:"matches"`
	Template    string        `json:"template"`
	Threshold   float64       `json:"threshold"`
	MinDistance float64       `json:"min_distance"`
}

func (s *Server) handleImageFindAllTemplates(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageFindAllTemplatesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	tmpl, err := s.resolveTemplate(a.templateArgs)
	if err != nil {
		return nil, err
	}
	t, src, err := s.loadPair(tmpl, a.Path)
	if err != nil {
		return nil, err
	}

	q := match.Query{
		Template:    t,
		Source:      src,
		Threshold:   tmpl.threshold,
		MaxResults:  a.MaxResults,
		MinDistance: s.minDistance(a.MinDistance, t),
	}
	found, err := s.search(ctx, q, tmpl.region)
	if err != nil {
		return nil, err
	}

	return &findAllResult{
		Count:       len(found),
		Matches:     newMatchResults(found),
		Template:    tmpl.name,
		Threshold:   q.Threshold,
		MinDistance: q.MinDistance,
	}, nil
}

type imageWaitForTemplateArgs struct {
	templateArgs
	Source     string `json:"source"`
	Path       string `json:"path"`
	Display    *int   `json:"display,omitempty"`
	IntervalMs *int   `json:"interval_ms,omitempty"`
	TimeoutMs  *int   `json:"timeout_ms,omitempty"`
}

type waitResult struct {
	Session   string       `json:"session"`
	State     wait.State   `json:"state"`
	Found     bool         `json:"found"`
	Match     *matchResult `json:"match,omitempty"`
	Polls     int          `json:"polls"`
	ElapsedMs int64        `json:"elapsed_ms"`
	Template  string       `json:"template"`
	Threshold float64      `json:"threshold"`
}

func (s *Server) handleImageWaitForTemplate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageWaitForTemplateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	tmpl, err := s.resolveTemplate(a.templateArgs)
	if err != nil {
		return nil, err
	}
	t, err := s.cache.LoadBuffer(tmpl.path, s.cfg.Match.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", tmpl.name, err)
	}

	provider, err := s.waitProvider(a, tmpl.region)
	if err != nil {
		return nil, err
	}

	spec := wait.Spec{
		Template:  t,
		Threshold: tmpl.threshold,
		Capture:   provider,
		Interval:  s.cfg.Wait.Interval,
		Timeout:   s.cfg.Wait.Timeout,
	}
	if a.IntervalMs != nil {
		spec.Interval = time.Duration(*a.IntervalMs) * time.Millisecond
	}
	if a.TimeoutMs != nil {
		spec.Timeout = time.Duration(*a.TimeoutMs) * time.Millisecond
	}

	res, err := s.waiter.Wait(ctx, spec)
	if err != nil {
		return nil, err
	}

	result := &waitResult{
		Session:   res.Session,
		State:     res.State,
		Found:     res.State == wait.Succeeded,
		Polls:     res.Polls,
		ElapsedMs: res.Elapsed.Milliseconds(),
		Template:  tmpl.name,
		Threshold: tmpl.threshold,
	}
	if res.Candidate != nil {
		c := *res.Candidate
		if tmpl.region != nil {
			c.Region.X += tmpl.region.X
			c.Region.Y += tmpl.region.Y
		}
		m := newMatchResult(c)
		result.Match = &m
	}
	return result, nil
}

// waitProvider picks the frame source for a wait. A screen source captures
// only the region; file frames are cropped to it after loading. Either way
// frame coordinates are relative to the region origin.
func (s *Server) waitProvider(a imageWaitForTemplateArgs, region *match.Region) (wait.CaptureProvider, error) {
	switch a.Source {
	case "", "screen":
		display := s.cfg.Capture.Display
		if a.Display != nil {
			display = *a.Display
		}
		screen := capture.Screen{Display: display, Channels: s.cfg.Match.Channels}
		if region != nil {
			screen.Rect = region.Rect()
		}
		return screen, nil
	case "file":
		if a.Path == "" {
			return nil, fmt.Errorf("path is required when source is file")
		}
		var provider wait.CaptureProvider = capture.File{Path: a.Path, Channels: s.cfg.Match.Channels}
		if region != nil {
			file := provider
			provider = wait.CaptureFunc(func(ctx context.Context) (*imaging.PixelBuffer, error) {
				frame, err := file.Capture(ctx)
				if err != nil {
					return nil, err
				}
				return cropRegion(frame, *region)
			})
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown source %q (want screen or file)", a.Source)
	}
}

// === Debugging Handlers ===

type imageAnnotateMatchesArgs struct {
	templateArgs
	Path        string   `json:"path"`
	MaxResults  int      `json:"max_results"`
	MinDistance *float64 `json:"min_distance,omitempty"`
	ShowScores  *bool    `json:"show_scores,omitempty"`
	BoxColor    string   `json:"box_color"`
	GridSpacing int      `json:"grid_spacing"`
	SavePath    string   `json:"save_path"`
}

type annotateResult struct {
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	ImageBase64 string        `json:"image_base64"`
	MimeType    string        `json:"mime_type"`
	SavedPath   string        `json:"saved_path,omitempty"`
	Count       int           `json:"count"`
	Matches     []matchResult `json:"matches"`
}

func (s *Server) handleImageAnnotateMatches(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageAnnotateMatchesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	tmpl, err := s.resolveTemplate(a.templateArgs)
	if err != nil {
		return nil, err
	}
	t, src, err := s.loadPair(tmpl, a.Path)
	if err != nil {
		return nil, err
	}

	q := match.Query{
		Template:    t,
		Source:      src,
		Threshold:   tmpl.threshold,
		MaxResults:  a.MaxResults,
		MinDistance: s.minDistance(a.MinDistance, t),
	}
	found, err := s.search(ctx, q, tmpl.region)
	if err != nil {
		return nil, err
	}

	showScores := true
	if a.ShowScores != nil {
		showScores = *a.ShowScores
	}
	annotated, err := overlay.Render(src, found, overlay.Options{
		ShowScores:  showScores,
		LineWidth:   s.cfg.Debug.LineWidth,
		BoxColor:    a.BoxColor,
		Threshold:   tmpl.threshold,
		GridSpacing: a.GridSpacing,
	})
	if err != nil {
		return nil, err
	}

	img := annotated.Image()
	encoded, err := imaging.EncodePNGBase64(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	if a.SavePath != "" {
		if err := imaging.SavePNG(a.SavePath, img); err != nil {
			return nil, err
		}
	}

	return &annotateResult{
		Width:       annotated.Width(),
		Height:      annotated.Height(),
		ImageBase64: encoded,
		MimeType:    "image/png",
		SavedPath:   a.SavePath,
		Count:       len(found),
		Matches:     newMatchResults(found),
	}, nil
}

type imageGridOverlayArgs struct {
	Path            string `json:"path"`
	GridSpacing     int    `json:"grid_spacing"`
	ShowCoordinates *bool  `json:"show_coordinates,omitempty"`
	GridColor       string `json:"grid_color"`
}

func (s *Server) handleImageGridOverlay(args json.RawMessage) (interface{}, error) {
	var a imageGridOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.GridSpacing == 0 {
		a.GridSpacing = 50
	}
	if a.GridColor == "" {
		a.GridColor = "#FF000080"
	}
	showCoordinates := true
	if a.ShowCoordinates != nil {
		showCoordinates = *a.ShowCoordinates
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return overlay.GridOverlay(img, a.GridSpacing, showCoordinates, a.GridColor)
}
