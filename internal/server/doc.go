// Package server implements the MCP (Model Context Protocol) server for
// template matching.
//
// This package provides a JSON-RPC 2.0 server that lets an agent find small
// reference images (templates) inside screenshots, wait for them to appear
// on screen and inspect the results visually.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//   - image_capture_screen: Save a screenshot of one display
//
// Template Authoring:
//   - image_crop: Extract a region, optionally saving and registering it as a template
//   - image_list_templates: List the template registry
//
// Template Matching:
//   - image_find_template: Best match above a threshold
//   - image_find_all_templates: Every non-overlapping match
//   - image_wait_for_template: Poll the screen or a file until a match appears
//
// Debugging:
//   - image_annotate_matches: Draw matches and scores onto the source
//   - image_grid_overlay: Add coordinate grid
//
// Matching tools accept either a registered template name or a
// template_path, an optional threshold and an optional search region.
// Reported regions are always in source coordinates.
//
// # Image Caching
//
// Loaded images and their pixel buffers are cached by path. Tools that
// write an image evict its path so later calls see the new contents.
// Frames polled by image_wait_for_template bypass the cache.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	srv := server.NewWithConfig(cfg, logger)
//	return srv.Run(ctx)
package server
