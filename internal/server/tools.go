package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pathProperty describes the common "path" argument.
var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

// regionProperty describes an optional search rectangle.
var regionProperty = map[string]interface{}{
	"type":        "object",
	"description": "Optional area of the source to search, with inclusive (x1,y1) and exclusive (x2,y2) corners. Overrides the region of a named template.",
	"properties": map[string]interface{}{
		"x1": map[string]interface{}{"type": "integer"},
		"y1": map[string]interface{}{"type": "integer"},
		"x2": map[string]interface{}{"type": "integer"},
		"y2": map[string]interface{}{"type": "integer"},
	},
	"required": []string{"x1", "y1", "x2", "y2"},
}

// templateProperties returns the arguments shared by every matching tool,
// merged with the tool's own properties.
func templateProperties(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"template": map[string]interface{}{
			"type":        "string",
			"description": "Name of a template from the configured registry (see image_list_templates)",
		},
		"template_path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to a template image. Used when 'template' is not given",
		},
		"threshold": map[string]interface{}{
			"type":        "number",
			"description": "Minimum similarity score in (0, 1]. Defaults to the template's threshold or the configured default (0.99)",
		},
		"region": regionProperty,
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The image is cached for subsequent operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_capture_screen",
			Description: "Capture a display and save it as a PNG file that other tools can read. The result lists the bounds of every active display.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"save_path": map[string]interface{}{
						"type":        "string",
						"description": "Where to write the PNG",
					},
					"display": map[string]interface{}{
						"type":        "integer",
						"description": "Zero-based display index. Defaults to the configured display",
					},
				},
				"required": []string{"save_path"},
			},
		},

		// Template Authoring
		{
			Name:        "image_crop",
			Description: "Crop a rectangular region from an image and return it as base64-encoded PNG. Set save_path (and optionally template_name) to store the crop as a new template.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge X coordinate (0-based)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge Y coordinate (0-based)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Right edge X coordinate (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Bottom edge Y coordinate (exclusive)",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0. Leave at 1.0 for templates",
						"default":     1.0,
					},
					"save_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional PNG path to write the crop to. Relative paths resolve against the template directory",
					},
					"template_name": map[string]interface{}{
						"type":        "string",
						"description": "Optional name to register the saved crop under. Requires save_path",
					},
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "image_list_templates",
			Description: "List the named templates available to the matching tools.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Template Matching
		{
			Name:        "image_find_template",
			Description: "Find the best match of a template image inside a source image. Returns the matched region, its score and the center point to click.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": templateProperties(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the source image (e.g. a screenshot)",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_find_all_templates",
			Description: "Find every non-overlapping match of a template inside a source image, best first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": templateProperties(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the source image",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of matches. 0 returns all",
					},
					"min_distance": map[string]interface{}{
						"type":        "number",
						"description": "Minimum distance in pixels between match centers. Defaults to half the template's shorter side; 0 disables suppression",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_wait_for_template",
			Description: "Poll the screen (or a file that another process rewrites) until a template appears, the timeout elapses, or an error occurs.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": templateProperties(map[string]interface{}{
					"source": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"screen", "file"},
						"description": "Where frames come from. Default screen",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Image path polled when source is 'file'",
					},
					"display": map[string]interface{}{
						"type":        "integer",
						"description": "Display index when source is 'screen'",
					},
					"interval_ms": map[string]interface{}{
						"type":        "integer",
						"description": "Delay between polls in milliseconds. Defaults to the configured interval (100)",
					},
					"timeout_ms": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum wait in milliseconds. Defaults to the configured timeout (10000); 0 checks once",
					},
				}),
			},
		},

		// Debugging
		{
			Name:        "image_annotate_matches",
			Description: "Search for a template and return the source image with every match outlined and labelled with its score. Useful for tuning thresholds.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": templateProperties(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the source image",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of matches to draw. 0 draws all",
					},
					"min_distance": map[string]interface{}{
						"type":        "number",
						"description": "Minimum distance in pixels between match centers",
					},
					"show_scores": map[string]interface{}{
						"type":        "boolean",
						"description": "Label each box with its score. Default true",
					},
					"box_color": map[string]interface{}{
						"type":        "string",
						"description": "Hex color for all boxes. Default colors boxes red to green by score",
					},
					"grid_spacing": map[string]interface{}{
						"type":        "integer",
						"description": "Draw a coordinate grid with this spacing. 0 disables",
					},
					"save_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional PNG path to write the annotated image to",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_grid_overlay",
			Description: "Add a coordinate grid overlay to help identify crop rectangles and positions.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"grid_spacing": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels between grid lines. Default 50",
						"default":     50,
					},
					"show_coordinates": map[string]interface{}{
						"type":        "boolean",
						"description": "Label grid intersections with coordinates",
						"default":     true,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid line color as hex. Default #FF000080 (semi-transparent red)",
						"default":     "#FF000080",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
