// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes folio lifecycle tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/images"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/publish"
	"github.com/starford/folio/internal/urls"
)

const contractURI = "folio://note-format"

// Server wraps the MCP server with folio tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	engine *publish.Engine
	images images.Store
}

// New creates a new MCP server with all folio tools registered.
// A nil image store disables upload_image.
func New(svc *noteservice.Service, engine *publish.Engine, store images.Store) *Server {
	if store == nil {
		store = images.Disabled{}
	}
	s := &Server{svc: svc, engine: engine, images: store}

	s.mcp = server.NewMCPServer(
		"folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, most recently updated first. All filters are optional."),
		mcp.WithString("status", mcp.Description("One of idea, draft, ready, scheduled, published, archived")),
		mcp.WithString("tag", mcp.Description("Only notes carrying this tag")),
		mcp.WithString("query", mcp.Description("Case-insensitive substring of title or content")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Number of notes to skip")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note by id, or by slug when id is empty."),
		mcp.WithString("id", mcp.Description("Note id")),
		mcp.WithString("slug", mcp.Description("Note slug")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Read the contract first via get_note_contract or the "+
			contractURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
		mcp.WithString("status", mcp.Description("idea (default), draft, ready or archived")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Change fields of a note. Omitted fields stay unchanged. "+
			"Pass revision to fail instead of overwriting a concurrent edit."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("revision", mcp.Description("Revision the edit is based on")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New Markdown body")),
		mcp.WithArray("tags", mcp.Description("Replacement tag list"), mcp.WithStringItems()),
		mcp.WithString("status", mcp.Description("Target status (use publish_note to publish)")),
		mcp.WithString("slug", mcp.Description("Explicit slug, only while none is assigned")),
		mcp.WithString("heroImage", mcp.Description("Image key or URL, empty string clears")),
		mcp.WithString("scheduledAt", mcp.Description("RFC 3339 publication time")),
		mcp.WithBoolean("clearScheduledAt", mcp.Description("Remove the scheduled time")),
		mcp.WithBoolean("regenerateSlug", mcp.Description("Derive the slug again from the title")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note that is not published."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("revision", mcp.Description("Revision the delete is based on")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("publish_note",
		mcp.WithDescription("Publish a ready or scheduled note to the site."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.publishNote)

	s.mcp.AddTool(mcp.NewTool("unpublish_note",
		mcp.WithDescription("Take a published note off the site and archive it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.unpublishNote)

	s.mcp.AddTool(mcp.NewTool("extract_urls",
		mcp.WithDescription("List the URLs referenced by a note with their kind "+
			"(hn_thread, reddit_thread, article, other)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.extractURLs)

	s.mcp.AddTool(mcp.NewTool("generate_draft",
		mcp.WithDescription("Replace the note content with an AI-written draft and move it to draft."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("revision", mcp.Description("Revision the draft is based on")),
	), s.generateDraft)

	s.mcp.AddTool(mcp.NewTool("suggest_titles",
		mcp.WithDescription("Suggest titles for a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithNumber("count", mcp.Description("Number of suggestions (default 5)")),
	), s.suggestTitles)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Upload an image from an http(s) URL or a base64 data URI. "+
			"With noteId and setHero the key becomes the note's hero image."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,...")),
		mcp.WithString("noteId", mcp.Description("Owning note id")),
		mcp.WithBoolean("setHero", mcp.Description("Set the uploaded key as heroImage of noteId")),
	), s.uploadImage)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the folio note and lifecycle contract. "+
			"Call this before creating or updating notes."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("How notes are written, moved through the workflow and published."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// Listen serves MCP over the given streams until ctx is cancelled or in is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func statusArg(raw string) (models.Status, error) {
	st, ok := models.ParseStatus(raw)
	if !ok {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return st, nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := models.NoteFilter{
		Search: req.GetString("query", ""),
		Limit:  req.GetInt("limit", 0),
		Offset: req.GetInt("offset", 0),
	}
	if raw := req.GetString("status", ""); raw != "" {
		st, err := statusArg(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		f.Status = &st
	}
	if tag := req.GetString("tag", ""); tag != "" {
		f.Tags = []string{tag}
	}

	notes, err := s.svc.List(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, slug := req.GetString("id", ""), req.GetString("slug", "")
	var (
		n   *models.Note
		err error
	)
	switch {
	case id != "":
		n, err = s.svc.Get(ctx, id)
	case slug != "":
		n, err = s.svc.GetBySlug(ctx, slug)
	default:
		return mcp.NewToolResultError("id or slug is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := noteservice.CreateInput{
		Title:   req.GetString("title", ""),
		Content: content,
		Tags:    req.GetStringSlice("tags", nil),
	}
	if raw := req.GetString("status", ""); raw != "" {
		if in.Status, err = statusArg(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	n, err := s.svc.Create(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	str := func(key string) *string {
		if _, ok := args[key]; !ok {
			return nil
		}
		v := req.GetString(key, "")
		return &v
	}

	in := noteservice.UpdateInput{
		Title:            str("title"),
		Content:          str("content"),
		Slug:             str("slug"),
		HeroImage:        str("heroImage"),
		ClearScheduledAt: req.GetBool("clearScheduledAt", false),
		RegenerateSlug:   req.GetBool("regenerateSlug", false),
		ExpectedRevision: req.GetString("revision", ""),
	}
	if _, ok := args["tags"]; ok {
		tags := req.GetStringSlice("tags", []string{})
		in.Tags = &tags
	}
	if raw := str("status"); raw != nil {
		st, err := statusArg(*raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in.Status = &st
	}
	if raw := str("scheduledAt"); raw != nil {
		at, err := time.Parse(time.RFC3339, *raw)
		if err != nil {
			return mcp.NewToolResultError("scheduledAt must be RFC 3339"), nil
		}
		in.ScheduledAt = &at
	}

	n, err := s.svc.Update(ctx, id, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.svc.Delete(ctx, id, req.GetString("revision", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) publishNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.engine.Publish(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) unpublishNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.engine.Unpublish(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) extractURLs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(urls.ClassifyAll(n.Content)), nil
}

func (s *Server) generateDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.GenerateDraft(ctx, id, req.GetString("revision", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n), nil
}

func (s *Server) suggestTitles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	titles, err := s.svc.SuggestTitles(ctx, id, req.GetInt("count", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(titles), nil
}

type uploadResult struct {
	Key           string `json:"key"`
	URL           string `json:"url"`
	MarkdownImage string `json:"markdownImage"`
}

func (s *Server) uploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	noteID := req.GetString("noteId", "")
	setHero := req.GetBool("setHero", false)
	if setHero && noteID == "" {
		return mcp.NewToolResultError("setHero needs noteId"), nil
	}
	if noteID != "" {
		if _, err := s.svc.Get(ctx, noteID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	asset, err := images.Fetch(ctx, raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key := images.Key(s.svc.Now(), noteID, asset.Ext)
	url, err := s.images.Upload(ctx, key, bytes.NewReader(asset.Data), int64(len(asset.Data)), asset.ContentType)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("upload failed: %v", err)), nil
	}

	if setHero {
		if _, err := s.svc.Update(ctx, noteID, noteservice.UpdateInput{HeroImage: &key}); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("uploaded %s but could not set hero image: %v", key, err)), nil
		}
	}
	return jsonResult(uploadResult{
		Key:           key,
		URL:           url,
		MarkdownImage: fmt.Sprintf("![](%s)", url),
	}), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
