package mcpserver

// NoteFormatContract describes how LLM consumers should write notes and move
// them through the editorial workflow.
const NoteFormatContract = `# folio Note Contract

A note is a Markdown body plus a few fields managed by folio. Do not write
YAML frontmatter into the content: title, tags and status are separate fields.

## Fields

- **content** (required): Markdown body, UTF-8. URLs written in the body are
  extracted automatically; use ` + "`" + `extract_urls` + "`" + ` to see them classified.
- **title** (optional): human-readable title. When empty, the first line of the
  content is used to derive the slug.
- **tags** (optional): lowercase, kebab-case (e.g. ` + "`" + `go` + "`" + `, ` + "`" + `side-projects` + "`" + `).
  Tags are normalized: trimmed, lowercased, deduplicated and sorted.
- **heroImage** (optional): object key returned by ` + "`" + `upload_image` + "`" + `, or an absolute URL.
- **slug**: assigned when the note becomes ` + "`" + `ready` + "`" + `. It is frozen once assigned, and
  permanently after the first publication.

## Workflow

` + "```" + `
idea      -> draft, archived
draft     -> ready, archived, idea
ready     -> scheduled, published, draft, archived
scheduled -> published, ready, archived
published -> archived, draft
archived  -> idea, draft
` + "```" + `

1. New notes start as ` + "`" + `idea` + "`" + ` unless another status is requested
   (scheduled and published are not allowed on create).
2. Moving to ` + "`" + `scheduled` + "`" + ` requires ` + "`" + `scheduledAt` + "`" + ` (RFC 3339). Due notes are
   published by the scheduler.
3. Use ` + "`" + `publish_note` + "`" + ` to publish and ` + "`" + `unpublish_note` + "`" + ` to take a note down
   (it becomes archived). ` + "`" + `update_note` + "`" + ` never publishes.
4. Published notes cannot be deleted. Unpublish first.
5. Pass the ` + "`" + `revision` + "`" + ` you read to ` + "`" + `update_note` + "`" + ` and ` + "`" + `delete_note` + "`" + `. A stale
   revision fails with a conflict: read the note again and retry.

## Published posts

Publishing writes ` + "`" + `{yyyy}/{mm}/{slug}.md` + "`" + ` with this frontmatter:

` + "```" + `markdown
---
title: Why SQLite
date: 2026-04-10
tags:
  - databases
readingTime: 3
heroImage: https://cdn.example.com/images/2026/04/0b7c.png
slug: why-sqlite
---

Body text in standard Markdown.
` + "```" + `

## Images

- Upload with ` + "`" + `upload_image` + "`" + ` from an http(s) URL or a base64 data URI.
- Supported formats: png, jpg, jpeg, gif, webp, svg (max 10 MB).
- The result has a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the body.
- Pass ` + "`" + `noteId` + "`" + ` and ` + "`" + `setHero` + "`" + ` to make the upload the note's hero image.
`
